package commands

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/device"
	"github.com/markusmaurer/cardinal/internal/logging"
	csync "github.com/markusmaurer/cardinal/internal/sync"
	"github.com/markusmaurer/cardinal/internal/swapchain"
	"github.com/markusmaurer/cardinal/internal/vkutil"
)

// RecordFunc records the draw commands for one frame into cmd, targeting
// framebuffer fb at the given extent. Supplied by the pipeline/scene layer;
// the frame driver only owns acquire/submit/present sequencing. Never called
// in headless mode, where §4.9 step 5 records an empty command buffer.
type RecordFunc func(cmd vk.CommandBuffer, fb vk.Framebuffer, extent vk.Extent2D, imageIndex uint32) error

// FrameError wraps a RenderFrame failure with its §7 error class and, when it
// originated from a classified vk.Result, that Result itself — so a caller
// can route only ClassRecoverableDevice failures to C14 instead of treating
// every error (a transient timeout, a resource hiccup) as device loss.
type FrameError struct {
	Class  vkutil.Class
	Result vk.Result
	Err    error
}

func (e *FrameError) Error() string { return e.Err.Error() }
func (e *FrameError) Unwrap() error { return e.Err }

func classifiedErr(ret vk.Result) *FrameError {
	return &FrameError{Class: vkutil.Classify(ret), Result: ret, Err: vkutil.Err(ret)}
}

func wrappedErr(class vkutil.Class, err error) *FrameError {
	return &FrameError{Class: class, Err: err}
}

// ClassOf extracts the §7 error class RenderFrame recorded for err, or
// vkutil.ClassUnknown if err did not come from this package.
func ClassOf(err error) vkutil.Class {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return vkutil.ClassUnknown
}

// ResultOf extracts the vk.Result RenderFrame recorded for err, if any. The
// second return is false when err carries no classified Result (e.g. a
// command-buffer begin/end failure, which vkutil.Classify never sees).
func ResultOf(err error) (vk.Result, bool) {
	var fe *FrameError
	if errors.As(err, &fe) && fe.Result != vk.Success {
		return fe.Result, true
	}
	return vk.Success, false
}

// Driver runs the per-frame acquire -> record -> submit -> present sequence
// described in §4.9, recreating the swapchain on ErrorOutOfDate/Suboptimal,
// or the headless variant of step 5 when no swapchain is attached at all.
// Grounded on the teacher's CoreRenderInstance.Update/submit_pipeline/
// acquire_next_image/present_image, generalized to an explicit RecordFunc
// injection point instead of one hardcoded draw call, and to drive the
// FrameSync timeline semaphore §4.9 steps 4/8/10 require.
type Driver struct {
	ctx        *device.Context
	sc         *swapchain.Swapchain
	frameSync  *csync.FrameSync
	cmdMgr     *BufferManager
	renderPass vk.RenderPass
	log        *logging.Logger

	headless     bool
	currentFrame int
	depth        int
}

// NewDriver builds the command-buffer manager for the graphics queue family
// and wires it to the given swapchain's frame-sync ring.
func NewDriver(ctx *device.Context, sc *swapchain.Swapchain, frameSync *csync.FrameSync, renderPass vk.RenderPass, log *logging.Logger) (*Driver, error) {
	cmdMgr, err := NewBufferManager(ctx, vk.CommandBufferLevelPrimary, ctx.GraphicsFamily)
	if err != nil {
		return nil, err
	}
	return &Driver{
		ctx:        ctx,
		sc:         sc,
		frameSync:  frameSync,
		cmdMgr:     cmdMgr,
		renderPass: renderPass,
		log:        log,
		depth:      sc.ImageCount(),
	}, nil
}

// NewHeadlessDriver builds a Driver with no swapchain at all, for §9's
// explicit headless mode: every RenderFrame call runs §4.9 step 5 (an empty
// command buffer signalling the timeline, no acquire/present) instead of the
// windowed algorithm. depth is the number of in-flight frame slots to cycle
// through, matching frameSync's own depth.
func NewHeadlessDriver(ctx *device.Context, frameSync *csync.FrameSync, depth int, log *logging.Logger) (*Driver, error) {
	cmdMgr, err := NewBufferManager(ctx, vk.CommandBufferLevelPrimary, ctx.GraphicsFamily)
	if err != nil {
		return nil, err
	}
	return &Driver{
		ctx:       ctx,
		frameSync: frameSync,
		cmdMgr:    cmdMgr,
		log:       log,
		headless:  true,
		depth:     depth,
	}, nil
}

// RenderFrame runs one full frame: wait for the slot's fence, acquire an
// image, record via record, submit, and present. Returns a *FrameError for
// every failure so the caller can branch on its §7 class; ErrorOutOfDate/
// Suboptimal are handled internally by recreating and retrying once.
func (d *Driver) RenderFrame(record RecordFunc) error {
	if d.headless {
		return d.renderHeadlessFrame()
	}
	return d.renderWindowedFrame(record)
}

func (d *Driver) renderWindowedFrame(record RecordFunc) error {
	frame := d.frameSync.At(d.currentFrame)

	if err := d.frameSync.Wait(d.currentFrame); err != nil {
		return wrappedErr(vkutil.ClassUnknown, fmt.Errorf("commands: %w", err))
	}

	imageIndex, err := d.acquire(frame)
	if err == errNeedsRecreate {
		if err := d.recreate(); err != nil {
			return wrappedErr(vkutil.ClassFatal, err)
		}
		imageIndex, err = d.acquire(frame)
	}
	if err != nil {
		if fe, ok := err.(*FrameError); ok {
			return fe
		}
		return wrappedErr(vkutil.ClassUnknown, fmt.Errorf("commands: acquire: %w", err))
	}

	// §4.9 step 4: reserve the timeline value this frame's submit will signal.
	signalAfterRender := d.frameSync.NextTimelineValue()

	d.cmdMgr.Reset()
	cmd, err := d.cmdMgr.NewCommandBuffer()
	if err != nil {
		return wrappedErr(vkutil.ClassFatal, fmt.Errorf("commands: %w", err))
	}

	if err := vk.Error(vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})); err != nil {
		return wrappedErr(vkutil.ClassFatal, fmt.Errorf("commands: begin command buffer: %w", err))
	}

	if err := record(cmd, d.sc.Framebuffer(int(imageIndex)), d.sc.Extent(), imageIndex); err != nil {
		return wrappedErr(vkutil.ClassUnknown, fmt.Errorf("commands: record: %w", err))
	}

	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return wrappedErr(vkutil.ClassFatal, fmt.Errorf("commands: end command buffer: %w", err))
	}

	if err := d.submit(frame, cmd, signalAfterRender); err != nil {
		return err
	}

	if err := d.present(frame, imageIndex); err == errNeedsRecreate {
		if err := d.recreate(); err != nil {
			return wrappedErr(vkutil.ClassFatal, err)
		}
	} else if err != nil {
		if fe, ok := err.(*FrameError); ok {
			return fe
		}
		return wrappedErr(vkutil.ClassUnknown, fmt.Errorf("commands: present: %w", err))
	}

	// §4.9 step 10.
	d.frameSync.AdvanceFrameValue(signalAfterRender)
	d.currentFrame = (d.currentFrame + 1) % d.depth
	return nil
}

// renderHeadlessFrame implements §4.9 step 5 exactly: record an empty command
// buffer, submit with a single signal on the timeline at signal_after_render,
// block on the fence, advance.
func (d *Driver) renderHeadlessFrame() error {
	frame := d.frameSync.At(d.currentFrame)

	if err := d.frameSync.Wait(d.currentFrame); err != nil {
		return wrappedErr(vkutil.ClassUnknown, fmt.Errorf("commands: %w", err))
	}

	d.cmdMgr.Reset()
	cmd, err := d.cmdMgr.NewCommandBuffer()
	if err != nil {
		return wrappedErr(vkutil.ClassFatal, fmt.Errorf("commands: %w", err))
	}

	if err := vk.Error(vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})); err != nil {
		return wrappedErr(vkutil.ClassFatal, fmt.Errorf("commands: begin command buffer: %w", err))
	}
	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return wrappedErr(vkutil.ClassFatal, fmt.Errorf("commands: end command buffer: %w", err))
	}

	signalAfterRender := d.frameSync.NextTimelineValue()
	signalTimeline := vk.SemaphoreSubmitInfo{
		SType:     vk.StructureTypeSemaphoreSubmitInfo,
		Semaphore: d.frameSync.TimelineSemaphore(),
		Value:     signalAfterRender,
		StageMask: vk.PipelineStageFlags2(vk.PipelineStageAllCommandsBit),
	}
	cmdInfo := vk.CommandBufferSubmitInfo{SType: vk.StructureTypeCommandBufferSubmitInfo, CommandBuffer: cmd}
	ret := vk.QueueSubmit2(d.ctx.GraphicsQueue, 1, []vk.SubmitInfo2{{
		SType:                    vk.StructureTypeSubmitInfo2,
		CommandBufferInfoCount:   1,
		PCommandBufferInfos:      []vk.CommandBufferSubmitInfo{cmdInfo},
		SignalSemaphoreInfoCount: 1,
		PSignalSemaphoreInfos:    []vk.SemaphoreSubmitInfo{signalTimeline},
	}}, frame.Fence)
	if ret != vk.Success {
		return classifiedErr(ret)
	}

	if ret := vk.WaitForFences(d.ctx.Device, 1, []vk.Fence{frame.Fence}, vk.True, vk.MaxUint64); ret != vk.Success {
		return classifiedErr(ret)
	}

	d.frameSync.AdvanceFrameValue(signalAfterRender)
	d.currentFrame = (d.currentFrame + 1) % d.depth
	return nil
}

var errNeedsRecreate = fmt.Errorf("commands: swapchain needs recreation")

func (d *Driver) acquire(frame *csync.Frame) (uint32, error) {
	var imageIndex uint32
	ret := vk.AcquireNextImage(d.ctx.Device, d.sc.Handle(), vk.MaxUint64, frame.ImageAcquired, vk.NullFence, &imageIndex)
	switch vkutil.Classify(ret) {
	case vkutil.ClassOK:
		return imageIndex, nil
	case vkutil.ClassRecoverableSurface:
		return 0, errNeedsRecreate
	default:
		return 0, classifiedErr(ret)
	}
}

// submit issues the recorded command buffer using Synchronization2 (§4.9 step
// 8): it waits on the image-acquired binary semaphore at color-attachment
// output, and signals both the render-finished binary semaphore (for present)
// and the timeline semaphore at signalValue (the cross-frame clock §5 names
// as the sole primitive that crosses threads and frames).
func (d *Driver) submit(frame *csync.Frame, cmd vk.CommandBuffer, signalValue uint64) error {
	waitInfo := vk.SemaphoreSubmitInfo{
		SType:     vk.StructureTypeSemaphoreSubmitInfo,
		Semaphore: frame.ImageAcquired,
		StageMask: vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit),
	}
	cmdInfo := vk.CommandBufferSubmitInfo{SType: vk.StructureTypeCommandBufferSubmitInfo, CommandBuffer: cmd}
	signalRenderFinished := vk.SemaphoreSubmitInfo{
		SType:     vk.StructureTypeSemaphoreSubmitInfo,
		Semaphore: frame.RenderFinished,
		StageMask: vk.PipelineStageFlags2(vk.PipelineStageAllCommandsBit),
	}
	signalTimeline := vk.SemaphoreSubmitInfo{
		SType:     vk.StructureTypeSemaphoreSubmitInfo,
		Semaphore: d.frameSync.TimelineSemaphore(),
		Value:     signalValue,
		StageMask: vk.PipelineStageFlags2(vk.PipelineStageAllCommandsBit),
	}

	ret := vk.QueueSubmit2(d.ctx.GraphicsQueue, 1, []vk.SubmitInfo2{{
		SType:                    vk.StructureTypeSubmitInfo2,
		WaitSemaphoreInfoCount:   1,
		PWaitSemaphoreInfos:      []vk.SemaphoreSubmitInfo{waitInfo},
		CommandBufferInfoCount:   1,
		PCommandBufferInfos:      []vk.CommandBufferSubmitInfo{cmdInfo},
		SignalSemaphoreInfoCount: 2,
		PSignalSemaphoreInfos:    []vk.SemaphoreSubmitInfo{signalRenderFinished, signalTimeline},
	}}, frame.Fence)
	if ret != vk.Success {
		return classifiedErr(ret)
	}
	return nil
}

func (d *Driver) present(frame *csync.Frame, imageIndex uint32) error {
	swapchains := []vk.Swapchain{d.sc.Handle()}
	ret := vk.QueuePresent(d.ctx.PresentQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{frame.RenderFinished},
		SwapchainCount:     1,
		PSwapchains:        swapchains,
		PImageIndices:      []uint32{imageIndex},
	})
	switch vkutil.Classify(ret) {
	case vkutil.ClassOK:
		return nil
	case vkutil.ClassRecoverableSurface:
		return errNeedsRecreate
	default:
		return classifiedErr(ret)
	}
}

func (d *Driver) recreate() error {
	d.log.Infof("commands: recreating swapchain")
	if err := d.sc.Recreate(d.renderPass); err != nil {
		return fmt.Errorf("commands: recreate swapchain: %w", err)
	}
	d.depth = d.sc.ImageCount()
	return nil
}

// CurrentFrame returns the in-flight slot index the next RenderFrame call will
// use.
func (d *Driver) CurrentFrame() int { return d.currentFrame }

// CurrentFrameValue returns current_frame_value (§3, §8 scenario 1): the
// timeline value the most recently completed RenderFrame call signalled.
func (d *Driver) CurrentFrameValue() uint64 { return d.frameSync.CurrentFrameValue() }

func (d *Driver) Destroy() {
	d.cmdMgr.Destroy()
}
