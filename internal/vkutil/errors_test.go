package vkutil

import (
	"errors"
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestIsError(t *testing.T) {
	if IsError(vk.Success) {
		t.Fatalf("IsError(Success) = true, want false")
	}
	if !IsError(vk.ErrorDeviceLost) {
		t.Fatalf("IsError(ErrorDeviceLost) = false, want true")
	}
}

func TestErrReturnsNilOnSuccess(t *testing.T) {
	if err := Err(vk.Success); err != nil {
		t.Fatalf("Err(Success) = %v, want nil", err)
	}
	if err := Err(vk.ErrorDeviceLost); err == nil {
		t.Fatalf("Err(ErrorDeviceLost) = nil, want an error")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		ret  vk.Result
		want Class
	}{
		{vk.Success, ClassOK},
		{vk.Incomplete, ClassOK},
		{vk.ErrorOutOfDate, ClassRecoverableSurface},
		{vk.Suboptimal, ClassRecoverableSurface},
		{vk.ErrorDeviceLost, ClassRecoverableDevice},
		{vk.ErrorSurfaceLost, ClassRecoverableDevice},
		{vk.Timeout, ClassTransient},
		{vk.NotReady, ClassTransient},
		{vk.ErrorOutOfHostMemory, ClassFatal},
		{vk.ErrorOutOfDeviceMemory, ClassFatal},
		{vk.ErrorExtensionNotPresent, ClassInvalidConfig},
		{vk.ErrorFeatureNotPresent, ClassInvalidConfig},
		{vk.ErrorFormatNotSupported, ClassInvalidConfig},
	}
	for _, c := range cases {
		if got := Classify(c.ret); got != c.want {
			t.Errorf("Classify(%d) = %s, want %s", c.ret, got, c.want)
		}
	}
}

func TestClassifyUnknownResult(t *testing.T) {
	if got := Classify(vk.Result(999999)); got != ClassUnknown {
		t.Fatalf("Classify(unknown) = %s, want unknown", got)
	}
}

func TestClassStringCoversEveryConstant(t *testing.T) {
	classes := []Class{
		ClassOK, ClassRecoverableSurface, ClassRecoverableDevice, ClassTransient,
		ClassResourceMissing, ClassInvalidConfig, ClassFatal, ClassUnknown,
	}
	seen := make(map[string]bool)
	for _, c := range classes {
		s := c.String()
		if s == "" {
			t.Errorf("Class(%d).String() is empty", c)
		}
		seen[s] = true
	}
	if len(seen) != len(classes) {
		t.Fatalf("Class.String() values collide: got %d distinct strings for %d classes", len(seen), len(classes))
	}
}

func TestSentinelErrors(t *testing.T) {
	if !errors.Is(ErrNoSuitableDevice, ErrNoSuitableDevice) {
		t.Fatalf("ErrNoSuitableDevice does not match itself via errors.Is")
	}
	if ErrExtentZero == nil {
		t.Fatalf("ErrExtentZero is nil")
	}
}
