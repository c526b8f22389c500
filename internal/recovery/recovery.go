// Package recovery implements component C14: device-loss detection and the
// teardown/rebuild sequence that follows it. Grounded on
// original_source/engine/src/renderer/vulkan_recovery_struct.h (the
// device_lost/recovery_in_progress/attempt_count/max_attempts/callbacks
// struct) and vulkan_renderer_frame.c's recovery routine (the ordered
// destroy-then-recreate sequence; a failed step ends the attempt with no
// fallback rebuild), adapted from
// a function operating on one big renderer struct to a Controller driven by
// caller-supplied Step closures — Go has no single god-struct to reach into,
// so each teardown/rebuild stage is injected instead.
package recovery

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/logging"
	"github.com/markusmaurer/cardinal/internal/vkutil"
)

// Step is one stage of teardown or rebuild. Name identifies it in logs and in
// a returned error's failure point, matching the original's failure_point
// string.
type Step struct {
	Name string
	Run  func() error
}

// Config wires the ordered steps a Controller drives. Teardown runs in the
// given order (reverse dependency order: scene buffers, then commands/sync,
// then pipelines, then render pass, then swapchain, then device); Rebuild
// runs in the reverse order (device first, swapchain, render pass,
// pipelines, commands/sync) and ReloadScene re-uploads the last scene if one
// was active, matching §4.14's "teardown in reverse-dependency order, rebuild
// forward, re-upload the last scene if one was loaded".
type Config struct {
	Teardown []Step
	Rebuild  []Step
	// ReloadScene re-uploads whatever scene was active before teardown; it is
	// skipped when no scene had been loaded. Returning an error marks the
	// attempt failed at the "scene reload" step.
	ReloadScene func() error
	// HasScene reports whether a scene is currently loaded and therefore
	// whether ReloadScene should run after a successful Rebuild.
	HasScene func() bool
	// DeviceStatus returns the device's current vk.Result (typically
	// vkGetFenceStatus or vkDeviceWaitIdle on a sentinel fence); recovery
	// only proceeds once this confirms vk.ErrorDeviceLost.
	DeviceStatus func() vk.Result
	// MaxAttempts caps consecutive recovery attempts before giving up, per
	// the original's attempt_count >= max_attempts check. Decided as 3 by
	// default per the open question on recovery attempt budgets.
	MaxAttempts uint32

	OnDeviceLoss func()
	OnComplete   func(success bool)
}

const defaultMaxAttempts = 3

// Controller tracks device-loss state across frames and drives the
// teardown/rebuild sequence when a loss is detected.
type Controller struct {
	cfg Config
	log *logging.Logger

	deviceLost         bool
	recoveryInProgress bool
	attemptCount       uint32
}

// New validates cfg (filling MaxAttempts with the default if unset) and
// returns a Controller in the "not lost" state.
func New(cfg Config, log *logging.Logger) *Controller {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Controller{cfg: cfg, log: log}
}

// NoteResult inspects a vk.Result returned from acquire/submit/present/wait
// and marks the device lost if it classifies as ClassRecoverableDevice with
// vk.ErrorDeviceLost specifically (ErrorSurfaceLost is the caller's swapchain
// to recreate, not this controller's).
func (c *Controller) NoteResult(ret vk.Result) {
	if ret == vk.ErrorDeviceLost {
		c.deviceLost = true
	}
}

// DeviceLost reports whether a loss has been observed and not yet recovered.
func (c *Controller) DeviceLost() bool { return c.deviceLost }

// Attempt runs one recovery pass if a loss is pending and the attempt budget
// allows it. It is a no-op (returning true, nil) if no loss is pending. It
// returns (success, error): success is false once MaxAttempts is exhausted,
// when DeviceStatus does not confirm the loss, or when a rebuild step or the
// scene reload fails; no fallback rebuild is attempted after such a failure.
// error carries the first failing step's underlying cause.
func (c *Controller) Attempt() (bool, error) {
	if !c.deviceLost || c.recoveryInProgress {
		return true, nil
	}
	if c.attemptCount >= c.cfg.MaxAttempts {
		c.log.Errorf("recovery: maximum device loss recovery attempts (%d) exceeded", c.cfg.MaxAttempts)
		return false, nil
	}

	c.recoveryInProgress = true
	c.attemptCount++
	c.log.Warnf("recovery: attempting device loss recovery (attempt %d/%d)", c.attemptCount, c.cfg.MaxAttempts)

	if c.cfg.OnDeviceLoss != nil {
		c.cfg.OnDeviceLoss()
	}

	if c.cfg.DeviceStatus != nil {
		if status := c.cfg.DeviceStatus(); status != vk.ErrorDeviceLost {
			c.log.Errorf("recovery: unexpected device status during recovery validation: %s", vkutil.Classify(status))
			c.recoveryInProgress = false
			return false, nil
		}
	}

	hadScene := c.cfg.HasScene != nil && c.cfg.HasScene()

	for _, s := range c.cfg.Teardown {
		if err := s.Run(); err != nil {
			c.log.Warnf("recovery: teardown step %q failed (continuing): %v", s.Name, err)
		}
	}

	success := true
	var failurePoint string
	var failureErr error
	for _, s := range c.cfg.Rebuild {
		if err := s.Run(); err != nil {
			success, failurePoint, failureErr = false, s.Name, err
			break
		}
	}

	if success && hadScene && c.cfg.ReloadScene != nil {
		if err := c.cfg.ReloadScene(); err != nil {
			success, failurePoint, failureErr = false, "scene reload", err
		}
	}

	if success {
		c.log.Infof("recovery: device loss recovery completed successfully")
		c.deviceLost = false
		c.attemptCount = 0
	} else {
		c.log.Errorf("recovery: device loss recovery failed at %q: %v", failurePoint, failureErr)
	}

	c.recoveryInProgress = false
	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete(success)
	}
	if !success {
		return false, failureErr
	}
	return true, nil
}
