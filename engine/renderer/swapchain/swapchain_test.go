package swapchain

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu/gputest"
)

func newManager(t *testing.T) (*gputest.Device, *Manager) {
	t.Helper()
	dev := gputest.New()
	dev.Caps.CurrentExtent = gpu.Extent2D{Width: undefinedExtent, Height: undefinedExtent}
	dev.Caps.MinImageCount = 3
	return dev, NewManager(dev, DefaultOptions())
}

func TestCreateDestroyCreateRoundTrip(t *testing.T) {
	dev, m := newManager(t)
	want := gpu.Extent2D{Width: 1700, Height: 900}

	if err := m.Create(want); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.State() != StateReady {
		t.Fatalf("state after Create: %v", m.State())
	}
	extent, count := m.Extent(), m.ImageCount()
	if extent != want {
		t.Fatalf("extent: got %v, want %v", extent, want)
	}

	m.Destroy()
	if m.State() != StateUninitialized {
		t.Fatalf("state after Destroy: %v", m.State())
	}
	if n := dev.LiveCount(gpu.ObjectKindSwapchain, gpu.ObjectKindSemaphore, gpu.ObjectKindImageView); n != 0 {
		t.Fatalf("objects alive after Destroy: %d", n)
	}

	if err := m.Create(want); err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if m.Extent() != extent || m.ImageCount() != count {
		t.Fatalf("round trip: got %v/%d, want %v/%d", m.Extent(), m.ImageCount(), extent, count)
	}
	if v := dev.Violations(); len(v) > 0 {
		t.Fatalf("device violations: %v", v)
	}
}

func TestPresentSemaphoresMatchImageCount(t *testing.T) {
	dev, m := newManager(t)
	if err := m.Create(gpu.Extent2D{Width: 640, Height: 480}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// min image count 3, so one more than that and more than two frames
	if m.ImageCount() != 4 {
		t.Fatalf("image count: got %d, want 4", m.ImageCount())
	}
	if n := dev.LiveCount(gpu.ObjectKindSemaphore); n != m.ImageCount() {
		t.Fatalf("present semaphores: got %d, want %d", n, m.ImageCount())
	}
	seen := make(map[gpu.Semaphore]bool)
	for i := 0; i < m.ImageCount(); i++ {
		seen[m.PresentSemaphore(uint32(i))] = true
	}
	if len(seen) != m.ImageCount() {
		t.Fatalf("present semaphores are not distinct")
	}
}

func TestCreateClampsExtent(t *testing.T) {
	_, m := newManager(t)
	if err := m.Create(gpu.Extent2D{Width: 10000, Height: 0}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := m.Extent(); got != (gpu.Extent2D{Width: 4096, Height: 1}) {
		t.Fatalf("extent: got %v, want 4096x1", got)
	}
}

func TestCreateUsesSurfaceExtent(t *testing.T) {
	dev := gputest.New()
	dev.Caps.CurrentExtent = gpu.Extent2D{Width: 800, Height: 600}
	m := NewManager(dev, DefaultOptions())
	if err := m.Create(gpu.Extent2D{Width: 1700, Height: 900}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := m.Extent(); got != dev.Caps.CurrentExtent {
		t.Fatalf("extent: got %v, want %v", got, dev.Caps.CurrentExtent)
	}
	if err := m.Create(gpu.Extent2D{Width: 1, Height: 1}); err == nil {
		t.Fatalf("Create on ready swapchain: expected error")
	}
}

func TestRebuildDrainsDeviceFirst(t *testing.T) {
	dev, m := newManager(t)
	if err := m.Create(gpu.Extent2D{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	old := m.handle
	m.RequestResize()
	dev.ClearEvents()

	if err := m.Rebuild(gpu.Extent2D{Width: 1024, Height: 768}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if m.ResizeRequested() {
		t.Fatalf("resize still requested after Rebuild")
	}
	if m.Extent() != (gpu.Extent2D{Width: 1024, Height: 768}) {
		t.Fatalf("extent after Rebuild: %v", m.Extent())
	}

	events := dev.Events()
	if events[0].Kind != gputest.EventWaitIdle {
		t.Fatalf("first rebuild event: got %v, want wait idle", events[0].Kind)
	}
	destroyedOld, created := -1, -1
	for i, e := range events {
		if e.Kind == gputest.EventDestroy && e.Handle == uint64(old) {
			destroyedOld = i
		}
		if e.Kind == gputest.EventSwapchainCreate {
			created = i
		}
	}
	if destroyedOld < 0 || created < destroyedOld {
		t.Fatalf("old swapchain destroyed at %d, new created at %d", destroyedOld, created)
	}
}

func TestAcquireAndPresentScheduleRebuild(t *testing.T) {
	dev, m := newManager(t)
	if err := m.Create(gpu.Extent2D{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	sem, _ := dev.CreateSemaphore()

	dev.FailNextAcquire(gpu.ErrOutOfDate)
	if _, err := m.AcquireNextImage(sem); !errors.Is(err, gpu.ErrOutOfDate) {
		t.Fatalf("AcquireNextImage: got %v, want ErrOutOfDate", err)
	}
	if !m.ResizeRequested() {
		t.Fatalf("out of date acquire did not request resize")
	}

	m.resizeRequested = false
	dev.SuboptimalNextAcquire()
	index, err := m.AcquireNextImage(sem)
	if err != nil {
		t.Fatalf("suboptimal AcquireNextImage: %v", err)
	}
	if !m.ResizeRequested() {
		t.Fatalf("suboptimal acquire did not request resize")
	}

	m.resizeRequested = false
	dev.FailNextPresent(gpu.ErrOutOfDate)
	if err := m.Present(index); err != nil {
		t.Fatalf("out of date Present must not surface: %v", err)
	}
	if !m.ResizeRequested() {
		t.Fatalf("out of date present did not request resize")
	}

	dev.FailNextPresent(gpu.ErrDeviceLost)
	if err := m.Present(index); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("Present: got %v, want ErrDeviceLost", err)
	}
}
