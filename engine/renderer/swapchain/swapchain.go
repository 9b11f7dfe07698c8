package swapchain

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/math"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

type State uint8

const (
	StateUninitialized State = iota
	StateReady
)

// undefinedExtent in CurrentExtent means the surface takes the size of the
// swapchain.
const undefinedExtent = ^uint32(0)

type Options struct {
	Format      gpu.Format
	PresentMode gpu.PresentMode
	Usage       gpu.ImageUsage
	// Timeout bounds the wait for a free image.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Format:      gpu.FormatB8G8R8A8Unorm,
		PresentMode: gpu.PresentModeFifo,
		Usage:       gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferDst,
		Timeout:     time.Second,
	}
}

// Manager owns the presentable images, their views and one present
// semaphore per image. The chain is only ever replaced whole.
type Manager struct {
	dev  gpu.Device
	opts Options

	state             State
	handle            gpu.Swapchain
	images            []gpu.Image
	views             []gpu.ImageView
	presentSemaphores []gpu.Semaphore
	format            gpu.Format
	extent            gpu.Extent2D
	resizeRequested   bool
}

func NewManager(dev gpu.Device, opts Options) *Manager {
	return &Manager{dev: dev, opts: opts}
}

// Create builds the chain for extent, clamped to what the surface allows.
func (m *Manager) Create(extent gpu.Extent2D) error {
	if m.state != StateUninitialized {
		return errors.New("swapchain already created")
	}
	caps, err := m.dev.SurfaceCapabilities()
	if err != nil {
		return fmt.Errorf("query surface capabilities: %w", err)
	}
	extent = chooseExtent(caps, extent)

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	sc, err := m.dev.CreateSwapchain(gpu.SwapchainDesc{
		Extent:      extent,
		Format:      m.opts.Format,
		PresentMode: m.opts.PresentMode,
		ImageCount:  imageCount,
		Usage:       m.opts.Usage,
	})
	if err != nil {
		return fmt.Errorf("create swapchain: %w", err)
	}

	m.handle = sc.Handle
	m.images = sc.Images
	m.views = sc.Views
	m.format = sc.Format
	m.extent = sc.Extent
	m.presentSemaphores = make([]gpu.Semaphore, 0, len(sc.Images))
	for range sc.Images {
		sem, err := m.dev.CreateSemaphore()
		if err != nil {
			m.state = StateReady
			m.Destroy()
			return fmt.Errorf("create present semaphore: %w", err)
		}
		m.presentSemaphores = append(m.presentSemaphores, sem)
	}
	m.state = StateReady
	core.LogInfo("swapchain created: %dx%d, %d images", m.extent.Width, m.extent.Height, len(m.images))
	return nil
}

func chooseExtent(caps gpu.SurfaceCapabilities, want gpu.Extent2D) gpu.Extent2D {
	if caps.CurrentExtent.Width != undefinedExtent {
		return caps.CurrentExtent
	}
	return gpu.Extent2D{
		Width:  math.Clamp(want.Width, caps.MinExtent.Width, caps.MaxExtent.Width),
		Height: math.Clamp(want.Height, caps.MinExtent.Height, caps.MaxExtent.Height),
	}
}

// Destroy tears down the semaphores, views and the swapchain. The caller
// must make sure the device no longer uses any of them.
func (m *Manager) Destroy() {
	if m.state != StateReady {
		return
	}
	for _, sem := range m.presentSemaphores {
		m.dev.Destroy(sem)
	}
	for _, view := range m.views {
		m.dev.Destroy(view)
	}
	m.dev.Destroy(m.handle)

	m.handle = gpu.Null
	m.images = nil
	m.views = nil
	m.presentSemaphores = nil
	m.state = StateUninitialized
}

func (m *Manager) Release() error {
	m.Destroy()
	return nil
}

// Rebuild drains the device and replaces the chain with one of extent.
func (m *Manager) Rebuild(extent gpu.Extent2D) error {
	if err := m.dev.WaitIdle(); err != nil {
		return fmt.Errorf("wait idle before swapchain rebuild: %w", err)
	}
	m.Destroy()
	if err := m.Create(extent); err != nil {
		return err
	}
	m.resizeRequested = false
	return nil
}

// AcquireNextImage asks for the next image, signaling sem when it is ready.
// A suboptimal chain is still used this frame; an out of date one returns
// gpu.ErrOutOfDate. Both schedule a rebuild.
func (m *Manager) AcquireNextImage(sem gpu.Semaphore) (uint32, error) {
	if m.state != StateReady {
		return 0, core.ErrNotInitialized
	}
	index, suboptimal, err := m.dev.AcquireNextImage(m.handle, sem, m.opts.Timeout)
	if errors.Is(err, gpu.ErrOutOfDate) {
		m.RequestResize()
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("acquire swapchain image: %w", err)
	}
	if suboptimal {
		m.RequestResize()
	}
	return index, nil
}

// Present queues image index once its present semaphore is signaled. Out of
// date and suboptimal results only schedule a rebuild.
func (m *Manager) Present(index uint32) error {
	if m.state != StateReady {
		return core.ErrNotInitialized
	}
	suboptimal, err := m.dev.Present(gpu.PresentInfo{
		Swapchain:  m.handle,
		ImageIndex: index,
		Wait:       []gpu.Semaphore{m.presentSemaphores[index]},
	})
	if errors.Is(err, gpu.ErrOutOfDate) || (err == nil && suboptimal) {
		m.RequestResize()
		return nil
	}
	if err != nil {
		return fmt.Errorf("present image %d: %w", index, err)
	}
	return nil
}

func (m *Manager) RequestResize() {
	m.resizeRequested = true
}

func (m *Manager) ResizeRequested() bool {
	return m.resizeRequested
}

func (m *Manager) State() State                            { return m.state }
func (m *Manager) Extent() gpu.Extent2D                    { return m.extent }
func (m *Manager) Format() gpu.Format                      { return m.format }
func (m *Manager) ImageCount() int                         { return len(m.images) }
func (m *Manager) Image(index uint32) gpu.Image            { return m.images[index] }
func (m *Manager) View(index uint32) gpu.ImageView         { return m.views[index] }
func (m *Manager) PresentSemaphore(i uint32) gpu.Semaphore { return m.presentSemaphores[i] }
