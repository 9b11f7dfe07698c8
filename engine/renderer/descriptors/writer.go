package descriptors

import (
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// Writer batches descriptor writes for one set. Every entry points at its
// own info value, which stays put until UpdateSet runs. A Writer is meant
// for one batch at a time; Clear it before the next.
type Writer struct {
	writes []gpu.DescriptorWrite
}

func (w *Writer) WriteImage(binding uint32, view gpu.ImageView, sampler gpu.Sampler, layout gpu.ImageLayout, t gpu.DescriptorType) {
	info := &gpu.DescriptorImageInfo{
		Sampler: sampler,
		View:    view,
		Layout:  layout,
	}
	w.writes = append(w.writes, gpu.DescriptorWrite{
		Binding: binding,
		Type:    t,
		Image:   info,
	})
}

func (w *Writer) WriteBuffer(binding uint32, buffer gpu.Buffer, size, offset uint64, t gpu.DescriptorType) {
	info := &gpu.DescriptorBufferInfo{
		Buffer: buffer,
		Offset: offset,
		Range:  size,
	}
	w.writes = append(w.writes, gpu.DescriptorWrite{
		Binding: binding,
		Type:    t,
		Buffer:  info,
	})
}

func (w *Writer) Clear() {
	w.writes = w.writes[:0]
}

// UpdateSet applies the batch to set in one device call.
func (w *Writer) UpdateSet(dev gpu.Device, set gpu.DescriptorSet) {
	for i := range w.writes {
		w.writes[i].Set = set
	}
	dev.UpdateDescriptorSets(w.writes)
}

func (w *Writer) Len() int {
	return len(w.writes)
}
