package frame

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lantern/engine/renderer/images"
	"github.com/spaghettifunk/lantern/engine/renderer/swapchain"
)

type harness struct {
	dev *gputest.Device
	sc  *swapchain.Manager
	fc  *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dev := gputest.New()
	dev.Caps.MinImageCount = 2
	sc := swapchain.NewManager(dev, swapchain.DefaultOptions())
	if err := sc.Create(gpu.Extent2D{Width: 800, Height: 600}); err != nil {
		t.Fatalf("swapchain Create: %v", err)
	}
	opts := DefaultOptions()
	opts.DescriptorSets = 16
	fc, err := NewController(dev, sc, opts)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	dev.ClearEvents()
	return &harness{dev: dev, sc: sc, fc: fc}
}

// drawFrame runs one frame that clears the swapchain image into present
// layout. It reports whether the frame was submitted.
func (h *harness) drawFrame(t *testing.T) bool {
	t.Helper()
	if err := h.fc.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	index, ok, err := h.fc.AcquireImage()
	if err != nil {
		t.Fatalf("AcquireImage: %v", err)
	}
	if !ok {
		return false
	}
	cmd := h.fc.Commands()
	images.Transition(cmd, h.sc.Image(index), gpu.LayoutUndefined, gpu.LayoutPresentSrc)
	if err := h.fc.SubmitAndPresent(); err != nil {
		t.Fatalf("SubmitAndPresent: %v", err)
	}
	return true
}

func (h *harness) checkViolations(t *testing.T) {
	t.Helper()
	if v := h.dev.Violations(); len(v) > 0 {
		t.Fatalf("device violations: %v", v)
	}
}

func TestThreeFramesEndToEnd(t *testing.T) {
	h := newHarness(t)
	start := h.fc.FrameNumber()
	for i := 0; i < 3; i++ {
		if !h.drawFrame(t) {
			t.Fatalf("frame %d dropped", i)
		}
	}
	if got := h.fc.FrameNumber() - start; got != 3 {
		t.Fatalf("frame counter advanced by %d, want 3", got)
	}
	h.checkViolations(t)

	// exactly two command buffers, used round robin
	submits := h.dev.EventsOf(gputest.EventSubmit)
	if len(submits) != 3 {
		t.Fatalf("submits: got %d, want 3", len(submits))
	}
	a, b, c := submits[0].Commands[0], submits[1].Commands[0], submits[2].Commands[0]
	if a == b || a != c {
		t.Fatalf("command buffers not round robin: %d %d %d", a, b, c)
	}

	// every slot fence goes signaled -> reset -> signaled
	for slot := 0; slot < FrameOverlap; slot++ {
		fence := uint64(h.fc.frames[slot].RenderFence)
		var seq []gputest.EventKind
		for _, e := range h.dev.EventsOf(gputest.EventFenceWait, gputest.EventFenceReset, gputest.EventSubmit) {
			if e.Handle != fence {
				continue
			}
			if e.Kind == gputest.EventFenceWait && !e.Signaled {
				t.Fatalf("slot %d waited on an unsignaled fence", slot)
			}
			seq = append(seq, e.Kind)
		}
		uses := 2 - slot // slot 0 drew frames 0 and 2
		if len(seq) != 3*uses {
			t.Fatalf("slot %d fence events: %v", slot, seq)
		}
		for i := 0; i < len(seq); i += 3 {
			if seq[i] != gputest.EventFenceWait || seq[i+1] != gputest.EventFenceReset || seq[i+2] != gputest.EventSubmit {
				t.Fatalf("slot %d fence cycle %d: %v", slot, i/3, seq[i:i+3])
			}
		}
		if !h.dev.FenceSignaled(gpu.Fence(fence)) {
			t.Fatalf("slot %d fence not signaled after submit", slot)
		}
	}
}

func TestFenceSignaledBeforeCommandReset(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 7; i++ {
		h.drawFrame(t)
	}
	h.checkViolations(t)

	slotOf := make(map[uint64]int)
	for i, ctx := range h.fc.frames {
		slotOf[ctx.Commands.Handle()] = i
	}
	lastWait := make(map[uint64]int)
	for i, e := range h.dev.Events() {
		switch e.Kind {
		case gputest.EventFenceWait:
			if e.Signaled {
				lastWait[e.Handle] = i
			}
		case gputest.EventCommandReset:
			slot, ok := slotOf[e.Handle]
			if !ok {
				continue
			}
			fence := uint64(h.fc.frames[slot].RenderFence)
			waited, ok := lastWait[fence]
			if !ok {
				t.Fatalf("event %d: command buffer of slot %d reset before any signaled wait", i, slot)
			}
			for _, between := range h.dev.Events()[waited:i] {
				if between.Kind == gputest.EventSubmit && between.Handle == fence {
					t.Fatalf("event %d: slot %d reset after a submit that was never waited on", i, slot)
				}
			}
		}
	}
}

func TestOutOfDateAcquireDropsFrame(t *testing.T) {
	h := newHarness(t)
	h.drawFrame(t)
	before := h.fc.FrameNumber()
	slot := h.fc.Current()

	h.dev.FailNextAcquire(gpu.ErrOutOfDate)
	if h.drawFrame(t) {
		t.Fatalf("frame drawn despite out of date swapchain")
	}
	if h.fc.FrameNumber() != before {
		t.Fatalf("frame number moved from %d to %d", before, h.fc.FrameNumber())
	}
	if !h.sc.ResizeRequested() {
		t.Fatalf("resize not requested")
	}
	if !h.dev.FenceSignaled(slot.RenderFence) {
		t.Fatalf("dropped frame left the slot fence unsignaled")
	}
	if err := h.fc.SubmitAndPresent(); !errors.Is(err, core.ErrFrameNotStarted) {
		t.Fatalf("SubmitAndPresent after drop: got %v, want ErrFrameNotStarted", err)
	}

	if err := h.sc.Rebuild(gpu.Extent2D{Width: 1024, Height: 768}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	// the same slot must be usable again without timing out
	if !h.drawFrame(t) {
		t.Fatalf("frame after rebuild dropped")
	}
	if h.fc.FrameNumber() != before+1 {
		t.Fatalf("frame number: got %d, want %d", h.fc.FrameNumber(), before+1)
	}
	h.checkViolations(t)
}

func TestSuboptimalPresentStillCountsFrame(t *testing.T) {
	h := newHarness(t)
	h.dev.SuboptimalNextPresent()
	if !h.drawFrame(t) {
		t.Fatalf("frame dropped")
	}
	if h.fc.FrameNumber() != 1 {
		t.Fatalf("frame number: got %d, want 1", h.fc.FrameNumber())
	}
	if !h.sc.ResizeRequested() {
		t.Fatalf("suboptimal present did not request resize")
	}
}

func TestSubmitSignalsPresentSemaphoreOfImage(t *testing.T) {
	dev := gputest.New()
	dev.Caps.MinImageCount = 3
	sc := swapchain.NewManager(dev, swapchain.DefaultOptions())
	if err := sc.Create(gpu.Extent2D{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	fc, err := NewController(dev, sc, DefaultOptions())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h := &harness{dev: dev, sc: sc, fc: fc}

	for i := 0; i < 6; i++ {
		h.drawFrame(t)
	}
	acquires := dev.EventsOf(gputest.EventAcquire)
	submits := dev.EventsOf(gputest.EventSubmit)
	presents := dev.EventsOf(gputest.EventPresent)
	for i := range submits {
		index := acquires[i].Index
		want := sc.PresentSemaphore(index)
		if got := submits[i].Signal[0]; got != want {
			t.Fatalf("frame %d: submit signals %d, want present semaphore %d of image %d", i, got, want, index)
		}
		if presents[i].Index != index || presents[i].Signal[0] != want {
			t.Fatalf("frame %d: present %+v does not wait on %d", i, presents[i], want)
		}
		if got := submits[i].Wait[0].Semaphore; got != fc.frames[i%FrameOverlap].AcquireSemaphore {
			t.Fatalf("frame %d: submit waits on %d, want acquire semaphore of slot %d", i, got, i%FrameOverlap)
		}
	}
	h.checkViolations(t)
}

func TestBeginFrameTimesOut(t *testing.T) {
	h := newHarness(t)
	if err := h.dev.ResetFence(h.fc.Current().RenderFence); err != nil {
		t.Fatalf("ResetFence: %v", err)
	}
	if err := h.fc.BeginFrame(); !errors.Is(err, gpu.ErrTimeout) {
		t.Fatalf("BeginFrame: got %v, want ErrTimeout", err)
	}
}

type released struct{ n *int }

func (r released) Release() error {
	*r.n++
	return nil
}

func TestFrameDeletionQueueWaitsForSlotReuse(t *testing.T) {
	h := newHarness(t)
	var n int
	if err := h.fc.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	h.fc.Current().Deletion.Push(released{n: &n})
	if _, ok, err := h.fc.AcquireImage(); err != nil || !ok {
		t.Fatalf("AcquireImage: %v", err)
	}
	images.Transition(h.fc.Commands(), h.sc.Image(h.fc.ImageIndex()), gpu.LayoutUndefined, gpu.LayoutPresentSrc)
	if err := h.fc.SubmitAndPresent(); err != nil {
		t.Fatalf("SubmitAndPresent: %v", err)
	}

	h.drawFrame(t) // other slot
	if n != 0 {
		t.Fatalf("released before the slot came around again")
	}
	h.drawFrame(t) // same slot again
	if n != 1 {
		t.Fatalf("released %d times, want 1", n)
	}
}

func TestDestroyReleasesEverything(t *testing.T) {
	h := newHarness(t)
	h.drawFrame(t)
	if err := h.dev.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	h.fc.Destroy()
	h.sc.Destroy()
	if n := h.dev.LiveCount(); n != 0 {
		t.Fatalf("%d objects alive after Destroy", n)
	}
	h.checkViolations(t)
}
