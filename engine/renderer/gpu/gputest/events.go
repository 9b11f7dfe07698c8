package gputest

import (
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

type EventKind int

const (
	EventFenceWait EventKind = iota
	EventFenceReset
	EventCommandReset
	EventCommandBegin
	EventSubmit
	EventAcquire
	EventPresent
	EventWaitIdle
	EventSwapchainCreate
	EventDestroy
	EventDescriptorPoolCreate
	EventDescriptorPoolReset
	EventDescriptorUpdate
	EventBarrier
	EventBlit
	EventCopy
	EventBindPipeline
	EventBindDescriptorSets
	EventPushConstants
	EventDispatch
	EventBeginRendering
	EventEndRendering
	EventDraw
)

// Event is one entry of the device log. Fields not relevant to Kind are zero.
type Event struct {
	Kind EventKind
	// Handle is the object the event is about: the fence, command buffer,
	// swapchain, pool, pipeline or destroyed object.
	Handle uint64
	// Command is the command buffer a recorded command belongs to.
	Command  uint64
	Signaled bool
	Index    uint32
	Count    uint32
	Commands []uint64
	Wait     []gpu.SemaphoreWait
	Signal   []gpu.Semaphore
	Barriers []gpu.ImageBarrier
	Blits    []gpu.ImageBlit
	Src, Dst uint64
	Data     []byte
	Groups   [3]uint32
	Err      error
}

func (d *Device) Events() []Event {
	return d.events
}

func (d *Device) EventsOf(kinds ...EventKind) []Event {
	var out []Event
	for _, e := range d.events {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func (d *Device) ClearEvents() {
	d.events = nil
}

// Violations lists API misuse the device detected, in order.
func (d *Device) Violations() []string {
	return d.violations
}

// Destroyed lists destroyed objects in destruction order.
func (d *Device) Destroyed() []gpu.Object {
	return d.destroyed
}

func (d *Device) IsLive(o gpu.Object) bool {
	kind, ok := d.live[o.ID()]
	return ok && kind == o.Kind()
}

// LiveCount counts live objects of the given kinds, or of every kind when
// none are given.
func (d *Device) LiveCount(kinds ...gpu.ObjectKind) int {
	n := 0
	for _, k := range d.live {
		if len(kinds) == 0 {
			n++
			continue
		}
		for _, want := range kinds {
			if k == want {
				n++
				break
			}
		}
	}
	return n
}

// DescriptorPoolsCreated counts every descriptor pool ever created.
func (d *Device) DescriptorPoolsCreated() int {
	return d.poolsMade
}

func (d *Device) Submissions() int {
	return d.submissions
}

// FenceSignaled reports the current state of a fence.
func (d *Device) FenceSignaled(h gpu.Fence) bool {
	f, ok := d.fences[h]
	return ok && f.signaled
}

// DescriptorWrite returns the last write applied to binding of set.
func (d *Device) DescriptorWrite(set gpu.DescriptorSet, binding uint32) (gpu.DescriptorWrite, bool) {
	ds, ok := d.descSets[set]
	if !ok {
		return gpu.DescriptorWrite{}, false
	}
	w, ok := ds.writes[binding]
	return w, ok
}

// DescriptorSetValid reports whether set has not been invalidated by a pool
// reset or destroy.
func (d *Device) DescriptorSetValid(set gpu.DescriptorSet) bool {
	_, ok := d.descSets[set]
	return ok
}

// ImageLevel returns the contents of one layer and mip of an image, or nil
// if nothing has been written there.
func (d *Device) ImageLevel(h gpu.Image, layer, mip uint32) []byte {
	img, ok := d.images[h]
	if !ok {
		return nil
	}
	return img.data[subresource{layer: layer, mip: mip}]
}

func (d *Device) ImageLayout(h gpu.Image, layer, mip uint32) gpu.ImageLayout {
	img, ok := d.images[h]
	if !ok {
		return gpu.LayoutUndefined
	}
	return img.layouts[subresource{layer: layer, mip: mip}]
}

func (d *Device) ImageDesc(h gpu.Image) (gpu.ImageDesc, bool) {
	img, ok := d.images[h]
	if !ok {
		return gpu.ImageDesc{}, false
	}
	return img.desc, true
}

// BufferData returns the backing bytes of any buffer, host visible or not.
func (d *Device) BufferData(h gpu.Buffer) []byte {
	if b, ok := d.buffers[h]; ok {
		return b.data
	}
	return nil
}
