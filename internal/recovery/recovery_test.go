package recovery

import (
	"errors"
	"testing"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/logging"
)

func TestAttemptNoOpWhenNoLoss(t *testing.T) {
	c := New(Config{}, logging.Nop())
	ok, err := c.Attempt()
	if !ok || err != nil {
		t.Fatalf("Attempt() on a healthy controller = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestAttemptSuccessPath(t *testing.T) {
	var torn, rebuilt, reloaded []string
	cfg := Config{
		MaxAttempts: 3,
		DeviceStatus: func() vk.Result {
			return vk.ErrorDeviceLost
		},
		HasScene: func() bool { return true },
		Teardown: []Step{
			{Name: "commands", Run: func() error { torn = append(torn, "commands"); return nil }},
			{Name: "swapchain", Run: func() error { torn = append(torn, "swapchain"); return nil }},
		},
		Rebuild: []Step{
			{Name: "device", Run: func() error { rebuilt = append(rebuilt, "device"); return nil }},
			{Name: "swapchain", Run: func() error { rebuilt = append(rebuilt, "swapchain"); return nil }},
		},
		ReloadScene: func() error { reloaded = append(reloaded, "scene"); return nil },
	}
	c := New(cfg, logging.Nop())
	c.NoteResult(vk.ErrorDeviceLost)

	ok, err := c.Attempt()
	if !ok || err != nil {
		t.Fatalf("Attempt() = (%v, %v), want (true, nil)", ok, err)
	}
	if c.DeviceLost() {
		t.Fatalf("DeviceLost() still true after a successful recovery")
	}
	if len(torn) != 2 || len(rebuilt) != 2 || len(reloaded) != 1 {
		t.Fatalf("step counts = torn:%d rebuilt:%d reloaded:%d, want 2/2/1", len(torn), len(rebuilt), len(reloaded))
	}
}

func TestAttemptFailureStopsAtFailingStep(t *testing.T) {
	var rebuilt []string
	cfg := Config{
		MaxAttempts:  3,
		DeviceStatus: func() vk.Result { return vk.ErrorDeviceLost },
		Rebuild: []Step{
			{Name: "device", Run: func() error { rebuilt = append(rebuilt, "device"); return nil }},
			{Name: "swapchain", Run: func() error { return errors.New("boom") }},
			{Name: "pipeline", Run: func() error { rebuilt = append(rebuilt, "pipeline"); return nil }},
		},
	}
	c := New(cfg, logging.Nop())
	c.NoteResult(vk.ErrorDeviceLost)

	ok, err := c.Attempt()
	if ok || err == nil {
		t.Fatalf("Attempt() = (%v, %v), want (false, non-nil)", ok, err)
	}
	if len(rebuilt) != 1 {
		t.Fatalf("rebuild steps ran = %v, want just [device] (swapchain should have stopped the chain)", rebuilt)
	}
	if !c.DeviceLost() {
		t.Fatalf("DeviceLost() should remain true after a failed recovery")
	}
}

func TestAttemptExhaustsMaxAttempts(t *testing.T) {
	cfg := Config{
		MaxAttempts:  1,
		DeviceStatus: func() vk.Result { return vk.ErrorDeviceLost },
		Rebuild: []Step{
			{Name: "device", Run: func() error { return errors.New("always fails") }},
		},
	}
	c := New(cfg, logging.Nop())
	c.NoteResult(vk.ErrorDeviceLost)

	if ok, _ := c.Attempt(); ok {
		t.Fatalf("first Attempt() unexpectedly succeeded")
	}

	// attemptCount is now 1 == MaxAttempts; device is still marked lost by
	// the failed attempt, so a second Attempt should refuse to run at all.
	ok, err := c.Attempt()
	if ok || err != nil {
		t.Fatalf("Attempt() after exhausting the budget = (%v, %v), want (false, nil)", ok, err)
	}
}
