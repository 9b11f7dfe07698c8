package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/lantern/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the window. Callbacks only set flags; the engine reads
// them once per loop iteration.
type Platform struct {
	Window *glfw.Window

	resized   bool
	minimized bool
	keys      map[glfw.Key]bool
}

func New() *Platform {
	return &Platform{keys: make(map[glfw.Key]bool)}
}

func (p *Platform) Startup(title string, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return core.ErrVulkanUnsupported
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), title, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetIconifyCallback(p.iconifyCallback)
	p.Window.Show()
	return nil
}

func (p *Platform) Shutdown() {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
}

// PumpMessages processes pending window events and reports whether the
// window should stay open.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// RequestClose makes the next PumpMessages report false. It may be called
// from any goroutine.
func (p *Platform) RequestClose() {
	if p.Window != nil {
		p.Window.SetShouldClose(true)
	}
}

// RequiredExtensions lists the instance extensions needed to present to
// the window.
func (p *Platform) RequiredExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateSurface creates a presentation surface for instance, which must
// be a vk.Instance.
func (p *Platform) CreateSurface(instance interface{}) (uintptr, error) {
	return p.Window.CreateWindowSurface(instance, nil)
}

// FramebufferSize is the drawable size in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(max(w, 0)), uint32(max(h, 0))
}

// TakeResized reports whether the framebuffer changed size since the last
// call.
func (p *Platform) TakeResized() bool {
	r := p.resized
	p.resized = false
	return r
}

func (p *Platform) Minimized() bool { return p.minimized }

func (p *Platform) KeyDown(k glfw.Key) bool { return p.keys[k] }

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	switch action {
	case glfw.Press:
		p.keys[key] = true
		if key == glfw.KeyEscape {
			w.SetShouldClose(true)
		}
	case glfw.Release:
		p.keys[key] = false
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resized = true
	// a zero sized framebuffer is how some platforms report minimize
	p.minimized = width == 0 || height == 0
}

func (p *Platform) iconifyCallback(w *glfw.Window, iconified bool) {
	p.minimized = iconified
	if !iconified {
		p.resized = true
	}
}
