package device

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestScoreDeviceDiscreteBeatsIntegrated(t *testing.T) {
	feat := Features{TimelineSemaphores: true}
	discrete := scoreDevice(vk.PhysicalDeviceProperties{DeviceType: vk.PhysicalDeviceTypeDiscreteGpu}, feat)
	integrated := scoreDevice(vk.PhysicalDeviceProperties{DeviceType: vk.PhysicalDeviceTypeIntegratedGpu}, feat)
	other := scoreDevice(vk.PhysicalDeviceProperties{DeviceType: vk.PhysicalDeviceType(99)}, feat)

	if !(discrete > integrated && integrated > other) {
		t.Fatalf("score ordering = discrete:%d integrated:%d other:%d, want discrete > integrated > other", discrete, integrated, other)
	}
}

func TestScoreDeviceDisqualifiesWithoutTimelineSemaphores(t *testing.T) {
	feat := Features{TimelineSemaphores: false, DynamicRendering: true}
	got := scoreDevice(vk.PhysicalDeviceProperties{DeviceType: vk.PhysicalDeviceTypeDiscreteGpu}, feat)
	if got != -1 {
		t.Fatalf("scoreDevice without timeline semaphores = %d, want -1", got)
	}
}

func TestScoreDeviceRewardsOptionalFeatures(t *testing.T) {
	base := Features{TimelineSemaphores: true}
	enriched := Features{
		TimelineSemaphores: true,
		DynamicRendering:   true,
		Maintenance4:       true,
		Maintenance8:       true,
		MeshShader:         true,
		DescriptorIndexing: true,
	}
	props := vk.PhysicalDeviceProperties{DeviceType: vk.PhysicalDeviceTypeDiscreteGpu}
	if scoreDevice(props, enriched) <= scoreDevice(props, base) {
		t.Fatalf("a device supporting every optional feature did not outscore a minimal one")
	}
}

func TestSafeStringAppendsNulTerminator(t *testing.T) {
	if got := safeString("VK_KHR_surface"); got != "VK_KHR_surface\x00" {
		t.Fatalf("safeString(%q) = %q, want a trailing NUL appended", "VK_KHR_surface", got)
	}
}

func TestSafeStringLeavesAlreadyTerminatedStringAlone(t *testing.T) {
	in := "VK_KHR_surface\x00"
	if got := safeString(in); got != in {
		t.Fatalf("safeString(already-terminated) = %q, want unchanged %q", got, in)
	}
}

func TestSafeStringsMapsEveryElement(t *testing.T) {
	out := safeStrings([]string{"a", "b\x00"})
	if out[0] != "a\x00" || out[1] != "b\x00" {
		t.Fatalf("safeStrings = %q, want [\"a\\x00\" \"b\\x00\"]", out)
	}
}
