// Package window wraps glfw window/surface creation, generalized from the
// teacher's display.go (CoreDisplay) to also track framebuffer-resize events
// so the frame driver knows when to recreate the swapchain, and to support a
// headless mode (no window, no surface) per §9's open question on an
// explicit headless path.
package window

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// Window owns the glfw window and its Vulkan surface. A nil *glfw.Window
// (headless mode) reports ConsumeResize() as always false and CreateSurface as
// vk.NullSurface.
type Window struct {
	handle  *glfw.Window
	resized bool
}

// New creates a width x height glfw window with no client API (Vulkan
// supplies its own), titled title. Call glfw.Init before calling New and
// glfw.Terminate after the last Window is destroyed.
func New(width, height int, title string) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	handle, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("window: create glfw window: %w", err)
	}

	w := &Window{handle: handle}
	handle.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) {
		w.resized = true
	})
	return w, nil
}

// Headless returns a Window with no backing glfw handle, for the explicit
// headless/offscreen mode §9 calls out as an open question this module
// resolves by supporting it explicitly rather than requiring a display.
func Headless() *Window {
	return &Window{}
}

// IsHeadless reports whether this Window has no backing glfw handle, so
// callers can branch bring-up (skip swapchain/surface setup) without
// inspecting package-private state.
func (w *Window) IsHeadless() bool { return w.handle == nil }

// RequiredInstanceExtensions returns the platform surface extensions glfw
// needs, or nil when glfw reports no Vulkan support. It does not depend on any
// Window, headless or not.
func RequiredInstanceExtensions() []string {
	if glfw.VulkanSupported() {
		return glfw.GetRequiredInstanceExtensions()
	}
	return nil
}

// CreateSurface satisfies device.CreateInfo.CreateSurface: it asks glfw to
// create a VkSurfaceKHR for this window against instance, or returns
// vk.NullSurface in headless mode.
func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	if w.handle == nil {
		return vk.NullSurface, nil
	}
	ret, err := w.handle.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("window: create vulkan surface: %w", err)
	}
	return vk.SurfaceFromPointer(ret), nil
}

// Size returns the current framebuffer size in pixels, or (0, 0) in headless
// mode.
func (w *Window) Size() (int, int) {
	if w.handle == nil {
		return 0, 0
	}
	return w.handle.GetFramebufferSize()
}

// ShouldClose reports whether the user requested the window close (always
// false in headless mode, where the caller owns its own exit condition).
func (w *Window) ShouldClose() bool {
	if w.handle == nil {
		return false
	}
	return w.handle.ShouldClose()
}

// PollEvents pumps the glfw event queue; a no-op in headless mode.
func (w *Window) PollEvents() {
	if w.handle != nil {
		glfw.PollEvents()
	}
}

// ConsumeResize reports whether a framebuffer resize occurred since the last
// call and clears the flag, so the frame driver recreates the swapchain
// exactly once per resize.
func (w *Window) ConsumeResize() bool {
	if !w.resized {
		return false
	}
	w.resized = false
	return true
}

// Destroy destroys the glfw window; a no-op in headless mode.
func (w *Window) Destroy() {
	if w.handle != nil {
		w.handle.Destroy()
	}
}
