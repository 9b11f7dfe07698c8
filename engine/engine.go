// Package engine owns every renderer subsystem. It builds them in
// dependency order, drives the frame loop and tears them down in reverse.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lantern/engine/assets"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/platform"
	"github.com/spaghettifunk/lantern/engine/renderer/components"
	"github.com/spaghettifunk/lantern/engine/renderer/frame"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/passes"
	"github.com/spaghettifunk/lantern/engine/renderer/resources"
	"github.com/spaghettifunk/lantern/engine/renderer/swapchain"
	"github.com/spaghettifunk/lantern/engine/renderer/ui"
	"github.com/spaghettifunk/lantern/engine/renderer/upload"
	"github.com/spaghettifunk/lantern/engine/renderer/vulkan"
)

const (
	minimizedSleep = 100 * time.Millisecond
	metricsPeriod  = 5 * time.Second
)

type Stage uint8

const (
	StageUninitialized Stage = iota
	StageInitialized
	StageRunning
	StageShuttingDown
)

type Engine struct {
	cfg   Config
	stage Stage

	platform  *platform.Platform
	device    *vulkan.Device
	allocator *resources.Allocator
	swapchain *swapchain.Manager
	frames    *frame.Controller
	immediate *upload.ImmediateSubmitter
	uploader  *upload.Uploader
	composer  *passes.Composer
	tunables  *core.TunablesWatcher

	// deletion holds the subsystems in construction order.
	deletion *resources.DeletionQueue

	camera      *components.Camera
	clock       *core.Clock
	metrics     *core.Metrics
	lastMetrics time.Duration
}

// Config is the loaded configuration plus the path it came from, which the
// tunables watcher follows.
type Config struct {
	core.Config
	Path    string
	Overlay ui.Overlay
}

// New brings every subsystem up. On failure whatever was already built is
// torn down again.
func New(cfg Config) (e *Engine, err error) {
	e = &Engine{
		cfg:      cfg,
		deletion: resources.NewDeletionQueue(),
		camera:   components.NewCamera(),
		clock:    core.NewClock(),
		metrics:  core.NewMetrics(),
	}
	defer func() {
		if err != nil {
			e.teardown()
			e = nil
		}
	}()

	e.platform = platform.New()
	w := cfg.Window
	if err := e.platform.Startup(w.Title, w.Width, w.Height); err != nil {
		return nil, fmt.Errorf("start platform: %w", err)
	}
	e.deletion.Push(resources.ReleaseFunc(func() error {
		e.platform.Shutdown()
		return nil
	}))

	if e.device, err = vulkan.New(e.platform, vulkan.Options{AppName: w.Title, Validation: cfg.Renderer.Validation}); err != nil {
		return nil, fmt.Errorf("create device: %w", err)
	}
	e.deletion.Push(e.device)

	e.allocator = resources.NewAllocator(e.device)
	e.deletion.Push(resources.ReleaseFunc(func() error {
		if n := e.allocator.Release(); n > 0 {
			return fmt.Errorf("%d allocations leaked", n)
		}
		return nil
	}))

	timeout := cfg.Renderer.GPUTimeout()
	scOpts := swapchain.DefaultOptions()
	scOpts.PresentMode = presentMode(cfg.Renderer.PresentMode)
	scOpts.Timeout = timeout
	e.swapchain = swapchain.NewManager(e.device, scOpts)
	if err := e.swapchain.Create(e.framebufferExtent()); err != nil {
		return nil, err
	}
	e.deletion.Push(e.swapchain)

	frameOpts := frame.DefaultOptions()
	frameOpts.Timeout = timeout
	frameOpts.DescriptorSets = cfg.Renderer.DescriptorSetsPerPool
	if e.frames, err = frame.NewController(e.device, e.swapchain, frameOpts); err != nil {
		return nil, err
	}
	e.deletion.Push(e.frames)

	if e.immediate, err = upload.NewImmediateSubmitter(e.device, timeout); err != nil {
		return nil, err
	}
	e.deletion.Push(e.immediate)
	e.uploader = upload.NewUploader(e.allocator, e.immediate)

	shaders := func(name string) ([]byte, error) {
		return assets.LoadShader(cfg.Renderer.ShaderDir, name)
	}
	if e.composer, err = passes.New(e.device, e.allocator, shaders, cfg.Overlay, e.swapchain.Extent()); err != nil {
		return nil, fmt.Errorf("create composer: %w", err)
	}
	e.deletion.Push(e.composer)
	e.composer.ApplyTunables(cfg.Tunables)

	if err := e.composer.LoadScene(e.uploader, loadSceneAssets(cfg.Scene)); err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}

	if cfg.Path != "" {
		if e.tunables, err = core.WatchTunables(cfg.Path); err != nil {
			// tunables stay at their loaded values
			core.LogWarn("not watching %s for tunables: %s", cfg.Path, err)
			err = nil
		} else {
			e.deletion.Push(resources.ReleaseFunc(e.tunables.Close))
		}
	}

	e.camera.SetPosition(mgl32.Vec3{0, 0, 5})
	e.stage = StageInitialized
	core.LogInfo("engine initialized")
	return e, nil
}

func presentMode(name string) gpu.PresentMode {
	switch name {
	case "mailbox":
		return gpu.PresentModeMailbox
	case "immediate":
		return gpu.PresentModeImmediate
	default:
		return gpu.PresentModeFifo
	}
}

func (e *Engine) framebufferExtent() gpu.Extent2D {
	w, h := e.platform.FramebufferSize()
	return gpu.Extent2D{Width: w, Height: h}
}

// Run drives frames until the window closes. Errors it returns are fatal.
func (e *Engine) Run() error {
	if e.stage != StageInitialized {
		return core.ErrNotInitialized
	}
	e.stage = StageRunning
	e.clock.Start()
	last := e.clock.Elapsed()

	for e.platform.PumpMessages() {
		if e.platform.Minimized() {
			time.Sleep(minimizedSleep)
			e.clock.Update()
			last = e.clock.Elapsed()
			continue
		}
		e.clock.Update()
		now := e.clock.Elapsed()
		delta := now - last
		last = now

		if e.tunables != nil {
			if t, ok := e.tunables.Poll(); ok {
				core.LogDebug("tunables reloaded")
				e.composer.ApplyTunables(t)
			}
		}
		if e.platform.TakeResized() || e.swapchain.ResizeRequested() {
			if err := e.resize(); err != nil {
				return err
			}
			continue
		}

		updateCamera(e.camera, e.platform, float32(delta.Seconds()))
		if err := e.drawFrame(now); err != nil {
			if gpu.IsTransient(err) {
				e.swapchain.RequestResize()
				continue
			}
			return err
		}

		e.metrics.Update(delta)
		if now-e.lastMetrics > metricsPeriod {
			e.lastMetrics = now
			core.LogDebug("%.0f fps, %.2f ms/frame", e.metrics.FPS(), e.metrics.FrameTime())
		}
	}
	return nil
}

// Close asks the loop to stop after the current frame.
func (e *Engine) Close() {
	e.platform.RequestClose()
}

// resize rebuilds the swapchain and the draw targets at the new
// framebuffer size. A zero sized framebuffer defers the rebuild.
func (e *Engine) resize() error {
	extent := e.framebufferExtent()
	if extent.Width == 0 || extent.Height == 0 {
		e.swapchain.RequestResize()
		return nil
	}
	core.LogDebug("resize to %dx%d", extent.Width, extent.Height)
	if err := e.swapchain.Rebuild(extent); err != nil {
		return fmt.Errorf("rebuild swapchain: %w", err)
	}
	if err := e.composer.Resize(e.swapchain.Extent()); err != nil {
		return fmt.Errorf("resize draw images: %w", err)
	}
	return nil
}

func (e *Engine) drawFrame(now time.Duration) error {
	if err := e.frames.BeginFrame(); err != nil {
		return err
	}
	index, ok, err := e.frames.AcquireImage()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	extent := e.swapchain.Extent()
	elapsed := float32(now.Seconds())
	aspect := float32(extent.Width) / float32(extent.Height)
	in := passes.FrameInput{
		View:      e.camera.View(),
		Proj:      e.camera.Projection(aspect),
		CameraPos: e.camera.Position,
		Rotation:  meshSpinSpeed * elapsed,
		Lights:    orbitLights(e.cfg.Scene.Lights, elapsed),
	}
	target := passes.Target{
		Image:  e.swapchain.Image(index),
		View:   e.swapchain.View(index),
		Extent: extent,
	}
	if err := e.composer.Draw(e.frames.Current(), e.frames.Commands(), target, in); err != nil {
		return fmt.Errorf("record frame %d: %w", e.frames.FrameNumber(), err)
	}
	return e.frames.SubmitAndPresent()
}

// Shutdown drains the device and destroys every subsystem in reverse
// order of creation.
func (e *Engine) Shutdown() error {
	if e.stage == StageShuttingDown {
		return nil
	}
	e.stage = StageShuttingDown
	core.LogInfo("engine shutting down")
	return e.teardown()
}

func (e *Engine) teardown() error {
	var errs []error
	if e.device != nil {
		if err := e.device.WaitIdle(); err != nil {
			errs = append(errs, fmt.Errorf("wait idle: %w", err))
		}
	}
	if err := e.deletion.Flush(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
