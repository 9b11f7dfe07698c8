package passes

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// ComputeEffect is a background shader writing the draw image, with the
// push constants it runs with.
type ComputeEffect struct {
	Name     string
	Pipeline gpu.Pipeline
	Data     ComputePushConstants
}

var effectDefaults = []struct {
	name string
	data ComputePushConstants
}{
	{"gradient", ComputePushConstants{Data: [4]mgl32.Vec4{{1, 0, 0, 1}, {0, 0, 1, 1}}}},
	{"sky", ComputePushConstants{Data: [4]mgl32.Vec4{{0.1, 0.2, 0.4, 0.97}}}},
}

func (c *Composer) createEffects() error {
	layout, err := c.dev.CreatePipelineLayout(gpu.PipelineLayoutDesc{
		SetLayouts: []gpu.DescriptorSetLayout{c.drawImageLayout},
		PushConstants: []gpu.PushConstantRange{{
			Stages: gpu.ShaderStageCompute,
			Size:   uint32(len(asBytes(&ComputePushConstants{}))),
		}},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline layout: %w", err)
	}
	c.effectLayout = layout
	c.deletion.PushObjects(c.dev, layout)

	for _, e := range effectDefaults {
		shader, err := c.shader(e.name + ".comp")
		if err != nil {
			return err
		}
		pipeline, err := c.dev.CreateComputePipeline(gpu.ComputePipelineDesc{Layout: layout, Shader: shader})
		c.dev.Destroy(shader)
		if err != nil {
			return fmt.Errorf("create %s pipeline: %w", e.name, err)
		}
		c.deletion.PushObjects(c.dev, pipeline)
		c.effects = append(c.effects, ComputeEffect{Name: e.name, Pipeline: pipeline, Data: e.data})
	}
	return nil
}

// Effects lists the background effects in selection order.
func (c *Composer) Effects() []ComputeEffect {
	return c.effects
}

// CurrentEffect is the effect the next frame dispatches, or nil when
// there are none.
func (c *Composer) CurrentEffect() *ComputeEffect {
	if len(c.effects) == 0 {
		return nil
	}
	return &c.effects[c.effect]
}

func (c *Composer) shader(name string) (gpu.ShaderModule, error) {
	code, err := c.shaders(name)
	if err != nil {
		return gpu.Null, err
	}
	module, err := c.dev.CreateShaderModule(code)
	if err != nil {
		return gpu.Null, fmt.Errorf("create shader module %s: %w", name, err)
	}
	return module, nil
}
