package window

import (
	vk "github.com/vulkan-go/vulkan"

	"testing"
)

func TestHeadlessWindowHasNoSurface(t *testing.T) {
	w := Headless()
	surf, err := w.CreateSurface(vk.Instance(nil))
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	if surf != vk.NullSurface {
		t.Fatalf("CreateSurface on a headless window = %v, want vk.NullSurface", surf)
	}
}

func TestHeadlessWindowSizeIsZero(t *testing.T) {
	w := Headless()
	width, height := w.Size()
	if width != 0 || height != 0 {
		t.Fatalf("Size() = (%d, %d), want (0, 0) in headless mode", width, height)
	}
}

func TestHeadlessWindowNeverRequestsClose(t *testing.T) {
	w := Headless()
	if w.ShouldClose() {
		t.Fatalf("ShouldClose() = true on a headless window")
	}
}

func TestHeadlessWindowPollEventsAndDestroyAreNoOps(t *testing.T) {
	w := Headless()
	w.PollEvents() // must not panic without glfw.Init
	w.Destroy()    // must not panic
}

func TestHeadlessWindowConsumeResizeAlwaysFalse(t *testing.T) {
	w := Headless()
	if w.ConsumeResize() {
		t.Fatalf("ConsumeResize() = true on a headless window, which never receives framebuffer callbacks")
	}
}
