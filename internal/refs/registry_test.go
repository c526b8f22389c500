package refs

import "testing"

func TestCreateAcquireRelease(t *testing.T) {
	r := New(0)
	destroyed := false

	e := r.Create("mesh:1", "payload", 4, func(payload interface{}) {
		destroyed = true
		if payload != "payload" {
			t.Errorf("destructor got %v, want %q", payload, "payload")
		}
	})
	if e.Count() != 1 {
		t.Fatalf("count = %d, want 1", e.Count())
	}
	if r.Total() != 1 {
		t.Fatalf("total = %d, want 1", r.Total())
	}

	same := r.Acquire("mesh:1")
	if same != e {
		t.Fatalf("Acquire returned a different entry for the same id")
	}
	if e.Count() != 2 {
		t.Fatalf("count after acquire = %d, want 2", e.Count())
	}

	r.Release(e)
	if destroyed {
		t.Fatalf("destructor ran after only one of two references was released")
	}
	r.Release(e)
	if !destroyed {
		t.Fatalf("destructor did not run after the last release")
	}
	if r.Exists("mesh:1") {
		t.Fatalf("entry still exists after its count reached zero")
	}
	if r.Total() != 0 {
		t.Fatalf("total = %d, want 0 after release", r.Total())
	}
}

func TestAcquireMissing(t *testing.T) {
	r := New(0)
	if e := r.Acquire("nope"); e != nil {
		t.Fatalf("Acquire on a missing id returned %v, want nil", e)
	}
}

func TestCreateDuplicateBumpsExistingEntry(t *testing.T) {
	r := New(0)
	first := r.Create("a", 1, 4, nil)
	second := r.Create("a", 2, 4, nil)
	if first != second {
		t.Fatalf("Create with a duplicate id returned a new entry instead of the existing one")
	}
	if first.Payload != 1 {
		t.Fatalf("existing entry's payload changed to %v, want the original 1", first.Payload)
	}
	if first.Count() != 2 {
		t.Fatalf("count = %d, want 2", first.Count())
	}
}

func TestCanonicalTrimsWhitespace(t *testing.T) {
	r := New(0)
	r.Create("  padded  ", nil, 0, nil)
	if !r.Exists("padded") {
		t.Fatalf("id was not canonicalized to its trimmed form")
	}
}
