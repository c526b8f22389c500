// Command cardinal is the renderer's editor/client entrypoint: it parses
// §6's command-line flags, brings up logging, the window, the device, the
// pipeline set, and the frame driver, then runs the main loop until the
// window closes. Grounded on the teacher's test/render_test.go (the
// glfw.Init/vk.Init/window-creation/poll-events bring-up sequence) and
// core.go's BaseCore construction, generalized from one hardcoded triangle
// demo into full component wiring (device, swapchain, sync, pipeline,
// texture, scene, recovery) driven by real CLI flags instead of literals.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/commands"
	"github.com/markusmaurer/cardinal/internal/device"
	"github.com/markusmaurer/cardinal/internal/logging"
	"github.com/markusmaurer/cardinal/internal/mathx"
	"github.com/markusmaurer/cardinal/internal/memalloc"
	"github.com/markusmaurer/cardinal/internal/pipeline"
	"github.com/markusmaurer/cardinal/internal/recovery"
	"github.com/markusmaurer/cardinal/internal/refs"
	"github.com/markusmaurer/cardinal/internal/scene"
	csync "github.com/markusmaurer/cardinal/internal/sync"
	"github.com/markusmaurer/cardinal/internal/swapchain"
	"github.com/markusmaurer/cardinal/internal/texture"
	"github.com/markusmaurer/cardinal/internal/vkutil"
	"github.com/markusmaurer/cardinal/internal/window"
)

const framesInFlight = 2
const maxTextures = 256

func main() {
	os.Exit(run())
}

func run() int {
	logLevel := flag.String("log-level", "warn", "trace|debug|info|warn|error|fatal")
	headless := flag.Bool("headless", false, "run without a window or swapchain")
	headlessFrames := flag.Int("headless-frames", 120, "frames to render in --headless mode before exiting (§8 scenario 1)")
	scenePath := flag.String("scene", "", "glTF/GLB file to load at startup")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: cardinal [--log-level LEVEL] [--scene FILE] [--headless] [--headless-frames N]")
		flag.PrintDefaults()
	}
	flag.Parse()

	log, err := logging.New(logging.ParseLevel(*logLevel), false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cardinal: open log:", err)
		return 1
	}
	defer log.Close()

	if err := bringUpAndRun(log, *headless, *headlessFrames, *scenePath); err != nil {
		log.Errorf("cardinal: %v", err)
		return 1
	}
	return 0
}

func bringUpAndRun(log *logging.Logger, headless bool, headlessFrames int, scenePath string) error {
	runtime.LockOSThread()

	var win *window.Window
	var instExt []string

	if !headless {
		if err := glfw.Init(); err != nil {
			return fmt.Errorf("glfw init: %w", err)
		}
		defer glfw.Terminate()
		vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())

		w, err := window.New(1280, 720, "Cardinal")
		if err != nil {
			return err
		}
		defer w.Destroy()
		win = w
		instExt = window.RequiredInstanceExtensions()
	} else {
		win = window.Headless()
	}

	ctx, err := device.New(device.CreateInfo{
		AppName:             "cardinal",
		EnableValidation:    false,
		RequiredInstanceExt: instExt,
		WantedDeviceExt: []string{
			"VK_KHR_synchronization2",
			"VK_KHR_maintenance4",
			"VK_KHR_maintenance8",
			"VK_KHR_dynamic_rendering",
			"VK_EXT_mesh_shader",
			"VK_EXT_descriptor_indexing",
		},
		CreateSurface: win.CreateSurface,
	}, log)
	if err != nil {
		return fmt.Errorf("device bring-up: %w", err)
	}
	defer ctx.Destroy()

	alloc := memalloc.New(ctx, log)
	defer alloc.Shutdown()

	uploader, err := commands.NewUploader(ctx)
	if err != nil {
		return fmt.Errorf("uploader: %w", err)
	}
	defer uploader.Destroy()

	texCache, err := texture.New(ctx, alloc, uploader)
	if err != nil {
		return fmt.Errorf("texture cache: %w", err)
	}
	defer texCache.Destroy()

	registry := refs.New(0)
	matCache := texture.NewMaterialCache(registry)
	sceneUploader := scene.NewUploader(ctx, alloc, uploader, matCache, log)

	shadersDir := os.Getenv("CARDINAL_SHADERS_DIR")
	if shadersDir == "" {
		shadersDir = "assets/shaders"
	}
	build := pipeline.BuildInfo{
		PBRVert: "pbr.vert.spv", PBRFrag: "pbr.frag.spv",
		UVVert: "uv.vert.spv", UVFrag: "uv.frag.spv",
		WireframeVert: "wireframe.vert.spv", WireframeFrag: "wireframe.frag.spv",
	}

	colorFormat := vk.FormatB8g8r8a8Unorm
	pipelines, err := pipeline.New(ctx, shadersDir, build, colorFormat, vk.FormatD32Sfloat, maxTextures)
	if err != nil {
		return fmt.Errorf("pipeline set: %w", err)
	}
	defer pipelines.Destroy()

	var sc *swapchain.Swapchain
	if !win.IsHeadless() {
		sc, err = swapchain.New(ctx, framesInFlight, pipelines.RenderPass)
		if err != nil {
			return fmt.Errorf("swapchain: %w", err)
		}
		defer sc.Destroy()
	}

	frameSync, err := csync.NewFrameSync(ctx, framesInFlight)
	if err != nil {
		return fmt.Errorf("frame sync: %w", err)
	}
	defer frameSync.Destroy()

	var driver *commands.Driver
	if win.IsHeadless() {
		driver, err = commands.NewHeadlessDriver(ctx, frameSync, framesInFlight, log)
	} else {
		driver, err = commands.NewDriver(ctx, sc, frameSync, pipelines.RenderPass, log)
	}
	if err != nil {
		return fmt.Errorf("frame driver: %w", err)
	}
	defer driver.Destroy()

	recoveryCtl := recovery.New(recovery.Config{
		DeviceStatus: func() vk.Result { return vk.DeviceWaitIdle(ctx.Device) },
		OnDeviceLoss: func() { log.Warnf("cardinal: device loss detected") },
		OnComplete:   func(success bool) { log.Infof("cardinal: recovery complete success=%v", success) },
	}, log)

	var gpuScene *scene.GpuScene
	if scenePath != "" {
		s, err := scene.Load(scenePath, texCache)
		if err != nil {
			log.Warnf("cardinal: scene load %q failed, continuing without a scene: %v", scenePath, err)
		} else {
			gpuScene, err = sceneUploader.Upload(s)
			if err != nil {
				log.Warnf("cardinal: scene upload %q failed, continuing without a scene: %v", scenePath, err)
				gpuScene = nil
			}
		}
	}
	if gpuScene != nil {
		defer sceneUploader.Clear(gpuScene)
	}

	aspect := float32(1280) / float32(720)
	if sc != nil {
		aspect = float32(sc.Extent().Width) / float32(maxInt(1, int(sc.Extent().Height)))
	}
	camera := mathx.NewCamera(
		[3]float32{0, 1.5, 4}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0},
		0.785398, aspect, 0.1, 100.0,
	)
	_ = camera

	renderOne := func() error {
		err := driver.RenderFrame(func(cmd vk.CommandBuffer, fb vk.Framebuffer, extent vk.Extent2D, imageIndex uint32) error {
			return recordFrame(cmd, fb, extent, pipelines, gpuScene)
		})
		if err == nil {
			return nil
		}

		class := commands.ClassOf(err)
		switch class {
		case vkutil.ClassRecoverableDevice:
			if ret, ok := commands.ResultOf(err); ok {
				recoveryCtl.NoteResult(ret)
			}
			if recoveryCtl.DeviceLost() {
				if ok, rerr := recoveryCtl.Attempt(); !ok {
					return fmt.Errorf("device recovery failed: %w", rerr)
				}
			}
		case vkutil.ClassRecoverableSurface, vkutil.ClassTransient:
			log.Warnf("cardinal: recoverable frame error (%s): %v", class, err)
		default:
			log.Warnf("cardinal: frame error (%s): %v", class, err)
		}
		return nil
	}

	if win.IsHeadless() {
		for i := 0; i < headlessFrames; i++ {
			if err := renderOne(); err != nil {
				return err
			}
		}
	} else {
		for !win.ShouldClose() {
			win.PollEvents()
			if win.ConsumeResize() {
				if err := sc.Recreate(pipelines.RenderPass); err != nil {
					log.Errorf("cardinal: swapchain recreate: %v", err)
				}
			}
			if err := renderOne(); err != nil {
				return err
			}
		}
	}

	vk.DeviceWaitIdle(ctx.Device)
	return nil
}

// recordFrame binds the PBR pipeline and draws every uploaded mesh, per
// §4.9 step 7. With no scene loaded it records an empty pass, matching
// §4.9 step 5's headless behavior generalized to "nothing to draw yet".
func recordFrame(cmd vk.CommandBuffer, fb vk.Framebuffer, extent vk.Extent2D, pipelines *pipeline.Set, gs *scene.GpuScene) error {
	clearValues := []vk.ClearValue{
		vk.NewClearValue([]float32{0.02, 0.02, 0.03, 1}),
		vk.NewClearDepthStencil(1, 0),
	}
	vk.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      pipelines.RenderPass,
		Framebuffer:     fb,
		RenderArea:      vk.Rect2D{Extent: extent},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)

	viewport := vk.Viewport{Width: float32(extent.Width), Height: float32(extent.Height), MaxDepth: 1}
	scissor := vk.Rect2D{Extent: extent}
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{scissor})

	variant := pipelines.ForMode(pipeline.ModeNormal, false)
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, variant.Pipeline)

	if gs != nil {
		for _, m := range gs.Meshes {
			offsets := []vk.DeviceSize{0}
			vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{m.Vertices.Handle}, offsets)
			if m.Indices != nil {
				vk.CmdBindIndexBuffer(cmd, m.Indices.Handle, 0, vk.IndexTypeUint32)
				vk.CmdDrawIndexed(cmd, m.IndexCount, 1, 0, 0, 0)
			} else {
				vk.CmdDraw(cmd, m.VertexCount, 1, 0, 0)
			}
		}
	}

	vk.CmdEndRenderPass(cmd)
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
