// Package descriptors builds descriptor set layouts, hands out sets from
// fixed and growable pools, and batches writes into them.
package descriptors

import (
	"fmt"

	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// LayoutBuilder accumulates bindings for one set layout. It can be reused
// after Clear.
type LayoutBuilder struct {
	bindings []gpu.DescriptorSetLayoutBinding
}

func (b *LayoutBuilder) AddBinding(binding uint32, t gpu.DescriptorType) *LayoutBuilder {
	b.bindings = append(b.bindings, gpu.DescriptorSetLayoutBinding{
		Binding: binding,
		Type:    t,
		Count:   1,
	})
	return b
}

func (b *LayoutBuilder) Clear() {
	b.bindings = b.bindings[:0]
}

// Build creates a layout where every binding is visible to stages. The
// builder itself is left untouched.
func (b *LayoutBuilder) Build(dev gpu.Device, stages gpu.ShaderStage) (gpu.DescriptorSetLayout, error) {
	bindings := make([]gpu.DescriptorSetLayoutBinding, len(b.bindings))
	for i, binding := range b.bindings {
		binding.Stages |= stages
		bindings[i] = binding
	}
	layout, err := dev.CreateDescriptorSetLayout(bindings)
	if err != nil {
		return gpu.Null, fmt.Errorf("build descriptor set layout: %w", err)
	}
	return layout, nil
}
