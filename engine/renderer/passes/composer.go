// Package passes records the work of one frame: the background compute
// effect, the scene geometry, the copy onto the swapchain image and the UI
// overlay, with the layout transitions each step depends on.
package passes

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/math"
	"github.com/spaghettifunk/lantern/engine/renderer/descriptors"
	"github.com/spaghettifunk/lantern/engine/renderer/frame"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/images"
	"github.com/spaghettifunk/lantern/engine/renderer/resources"
	"github.com/spaghettifunk/lantern/engine/renderer/ui"
	"github.com/spaghettifunk/lantern/engine/renderer/upload"
)

const (
	DrawFormat  = gpu.FormatR16G16B16A16Sfloat
	DepthFormat = gpu.FormatD32Sfloat

	// local size of the compute effects
	workgroupSize = 16
	lightScale    = 0.1
)

// ShaderSource returns the SPIR-V of a named shader, e.g. "mesh.vert".
type ShaderSource func(name string) ([]byte, error)

// Target is the swapchain image a frame ends up in.
type Target struct {
	Image  gpu.Image
	View   gpu.ImageView
	Extent gpu.Extent2D
}

// FrameInput is what the camera and the scene animation supply each frame.
type FrameInput struct {
	View      mgl32.Mat4
	Proj      mgl32.Mat4
	CameraPos mgl32.Vec3
	// Rotation of the scene mesh around Y, in radians.
	Rotation float32
	Lights   []Light
}

type Composer struct {
	dev      gpu.Device
	alloc    *resources.Allocator
	shaders  ShaderSource
	overlay  ui.Overlay
	deletion *resources.DeletionQueue
	writer   descriptors.Writer

	globalDescriptors descriptors.Allocator
	drawImageLayout   gpu.DescriptorSetLayout
	sceneLayout       gpu.DescriptorSetLayout
	materialLayout    gpu.DescriptorSetLayout
	skyboxLayout      gpu.DescriptorSetLayout
	drawImageSet      gpu.DescriptorSet

	drawImage  *resources.AllocatedImage
	depthImage *resources.AllocatedImage
	drawExtent gpu.Extent2D

	effectLayout gpu.PipelineLayout
	effects      []ComputeEffect
	effect       int

	meshLayout       gpu.PipelineLayout
	meshPipeline     gpu.Pipeline
	lightPipeline    gpu.Pipeline
	skyboxPipeLayout gpu.PipelineLayout
	skyboxPipeline   gpu.Pipeline
	sampler          gpu.Sampler

	// one persistently mapped scene uniform buffer per frame slot
	sceneBuffers map[*frame.Context]*resources.AllocatedBuffer

	scene    *gpuScene
	tunables core.Tunables
}

// New builds the draw targets, descriptor layouts and pipelines for a
// window of the given size. The scene itself comes later via LoadScene.
func New(dev gpu.Device, alloc *resources.Allocator, shaders ShaderSource, overlay ui.Overlay, extent gpu.Extent2D) (*Composer, error) {
	if overlay == nil {
		overlay = ui.Nop{}
	}
	c := &Composer{
		dev:      dev,
		alloc:    alloc,
		shaders:  shaders,
		overlay:  overlay,
		deletion: resources.NewDeletionQueue(),
		tunables: core.DefaultConfig().Tunables,

		sceneBuffers: make(map[*frame.Context]*resources.AllocatedBuffer, frame.FrameOverlap),
	}
	steps := []func() error{
		c.createDescriptors,
		func() error { return c.createDrawImages(extent) },
		c.createEffects,
		c.createGraphicsPipelines,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			c.Destroy()
			return nil, err
		}
	}
	c.ApplyTunables(c.tunables)
	return c, nil
}

func (c *Composer) createDescriptors() error {
	ratios := []descriptors.PoolSizeRatio{
		{Type: gpu.DescriptorStorageImage, Ratio: 1},
		{Type: gpu.DescriptorCombinedImageSampler, Ratio: 1},
	}
	if err := c.globalDescriptors.InitPool(c.dev, 10, ratios); err != nil {
		return err
	}
	c.deletion.Push(&c.globalDescriptors)

	var builder descriptors.LayoutBuilder
	var err error
	if c.drawImageLayout, err = builder.AddBinding(0, gpu.DescriptorStorageImage).Build(c.dev, gpu.ShaderStageCompute); err != nil {
		return err
	}
	c.deletion.PushObjects(c.dev, c.drawImageLayout)

	builder.Clear()
	if c.sceneLayout, err = builder.AddBinding(0, gpu.DescriptorUniformBuffer).Build(c.dev, gpu.ShaderStageAllGraphics); err != nil {
		return err
	}
	c.deletion.PushObjects(c.dev, c.sceneLayout)

	builder.Clear()
	builder.
		AddBinding(0, gpu.DescriptorCombinedImageSampler).
		AddBinding(1, gpu.DescriptorCombinedImageSampler).
		AddBinding(2, gpu.DescriptorCombinedImageSampler).
		AddBinding(3, gpu.DescriptorCombinedImageSampler)
	if c.materialLayout, err = builder.Build(c.dev, gpu.ShaderStageFragment); err != nil {
		return err
	}
	c.deletion.PushObjects(c.dev, c.materialLayout)

	builder.Clear()
	if c.skyboxLayout, err = builder.AddBinding(0, gpu.DescriptorCombinedImageSampler).Build(c.dev, gpu.ShaderStageFragment); err != nil {
		return err
	}
	c.deletion.PushObjects(c.dev, c.skyboxLayout)

	if c.drawImageSet, err = c.globalDescriptors.Allocate(c.drawImageLayout); err != nil {
		return err
	}

	if c.sampler, err = c.dev.CreateSampler(gpu.SamplerDesc{MagFilter: gpu.FilterLinear, MinFilter: gpu.FilterLinear, MaxLod: 16}); err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}
	c.deletion.PushObjects(c.dev, c.sampler)
	return nil
}

// createDrawImages allocates the offscreen color and depth targets and
// points the compute descriptor at the new color image.
func (c *Composer) createDrawImages(extent gpu.Extent2D) error {
	draw, err := c.alloc.CreateImage(extent.To3D(), DrawFormat,
		gpu.ImageUsageTransferSrc|gpu.ImageUsageTransferDst|gpu.ImageUsageStorage|gpu.ImageUsageColorAttachment,
		false)
	if err != nil {
		return fmt.Errorf("create draw image: %w", err)
	}
	depth, err := c.alloc.CreateImage(extent.To3D(), DepthFormat, gpu.ImageUsageDepthStencilAttachment, false)
	if err != nil {
		draw.Release()
		return fmt.Errorf("create depth image: %w", err)
	}
	c.drawImage, c.depthImage = draw, depth
	c.drawExtent = extent

	c.writer.Clear()
	c.writer.WriteImage(0, draw.View, gpu.Null, gpu.LayoutGeneral, gpu.DescriptorStorageImage)
	c.writer.UpdateSet(c.dev, c.drawImageSet)
	return nil
}

func (c *Composer) destroyDrawImages() error {
	var errs []error
	if c.drawImage != nil {
		errs = append(errs, c.drawImage.Release())
		c.drawImage = nil
	}
	if c.depthImage != nil {
		errs = append(errs, c.depthImage.Release())
		c.depthImage = nil
	}
	return errors.Join(errs...)
}

// Resize replaces the draw targets. The device must be idle.
func (c *Composer) Resize(extent gpu.Extent2D) error {
	if err := c.destroyDrawImages(); err != nil {
		return err
	}
	return c.createDrawImages(extent)
}

func (c *Composer) createGraphicsPipelines() error {
	push := []gpu.PushConstantRange{{
		Stages: gpu.ShaderStageAllGraphics,
		Size:   uint32(len(asBytes(&MeshPushConstants{}))),
	}}
	var err error
	if c.meshLayout, err = c.dev.CreatePipelineLayout(gpu.PipelineLayoutDesc{
		SetLayouts:    []gpu.DescriptorSetLayout{c.sceneLayout, c.materialLayout},
		PushConstants: push,
	}); err != nil {
		return fmt.Errorf("create mesh pipeline layout: %w", err)
	}
	c.deletion.PushObjects(c.dev, c.meshLayout)

	if c.skyboxPipeLayout, err = c.dev.CreatePipelineLayout(gpu.PipelineLayoutDesc{
		SetLayouts:    []gpu.DescriptorSetLayout{c.sceneLayout, c.skyboxLayout},
		PushConstants: push,
	}); err != nil {
		return fmt.Errorf("create skybox pipeline layout: %w", err)
	}
	c.deletion.PushObjects(c.dev, c.skyboxPipeLayout)

	opaque := gpu.GraphicsPipelineDesc{
		Layout:       c.meshLayout,
		ColorFormat:  DrawFormat,
		DepthFormat:  DepthFormat,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: gpu.CompareGreaterOrEqual,
		Cull:         gpu.CullBack,
		Blend:        gpu.BlendNone,
	}
	if c.meshPipeline, err = c.graphicsPipeline(opaque, "mesh.vert", "mesh.frag"); err != nil {
		return err
	}
	if c.lightPipeline, err = c.graphicsPipeline(opaque, "mesh.vert", "light.frag"); err != nil {
		return err
	}

	skybox := opaque
	skybox.Layout = c.skyboxPipeLayout
	skybox.DepthTest = false
	skybox.DepthWrite = false
	skybox.Cull = gpu.CullNone
	if c.skyboxPipeline, err = c.graphicsPipeline(skybox, "skybox.vert", "skybox.frag"); err != nil {
		return err
	}
	return nil
}

// graphicsPipeline compiles desc with the two named shaders. The shader
// modules are only needed while the pipeline is created.
func (c *Composer) graphicsPipeline(desc gpu.GraphicsPipelineDesc, vert, frag string) (gpu.Pipeline, error) {
	vs, err := c.shader(vert)
	if err != nil {
		return gpu.Null, err
	}
	defer c.dev.Destroy(vs)
	fs, err := c.shader(frag)
	if err != nil {
		return gpu.Null, err
	}
	defer c.dev.Destroy(fs)

	desc.VertexShader, desc.FragmentShader = vs, fs
	pipeline, err := c.dev.CreateGraphicsPipeline(desc)
	if err != nil {
		return gpu.Null, fmt.Errorf("create pipeline %s/%s: %w", vert, frag, err)
	}
	c.deletion.PushObjects(c.dev, pipeline)
	return pipeline, nil
}

// ApplyTunables takes new UI values. The effect index is clamped to the
// effect list. Edited effect data goes to the selected effect, and the
// returned view of the tunables always carries that effect's constants.
func (c *Composer) ApplyTunables(t core.Tunables) {
	prev := c.tunables
	c.tunables = t.Sanitize()
	if len(c.effects) == 0 {
		c.effect = 0
		return
	}
	c.effect = math.Clamp(c.tunables.Effect, 0, len(c.effects)-1)
	current := &c.effects[c.effect].Data
	if c.tunables.EffectData != prev.EffectData {
		for i, v := range c.tunables.EffectData {
			current.Data[i] = mgl32.Vec4(v)
		}
	}
	for i, v := range current.Data {
		c.tunables.EffectData[i] = [4]float32(v)
	}
}

func (c *Composer) Tunables() core.Tunables {
	return c.tunables
}

// DrawExtent is the region of the draw image the last frame rendered.
func (c *Composer) DrawExtent() gpu.Extent2D {
	return c.drawExtent
}

func (c *Composer) DrawImage() *resources.AllocatedImage {
	return c.drawImage
}

// Draw records one frame into cmd, which must be the open command buffer
// of f. The scene uniforms are written into the buffer owned by f's slot,
// which the GPU no longer reads once f has begun.
func (c *Composer) Draw(f *frame.Context, cmd gpu.CommandBuffer, target Target, in FrameInput) error {
	if c.scene == nil {
		return core.ErrNotInitialized
	}
	sceneSet, err := c.sceneDescriptor(f, in)
	if err != nil {
		return err
	}
	c.drawExtent = gpu.Extent2D{
		Width:  min(target.Extent.Width, c.drawImage.Extent.Width),
		Height: min(target.Extent.Height, c.drawImage.Extent.Height),
	}
	draw, depth := c.drawImage.Image, c.depthImage.Image

	images.Transition(cmd, draw, gpu.LayoutUndefined, gpu.LayoutGeneral)
	c.drawBackground(cmd)

	images.Transition(cmd, draw, gpu.LayoutGeneral, gpu.LayoutColorAttachment)
	images.Transition(cmd, depth, gpu.LayoutUndefined, gpu.LayoutDepthAttachment)
	c.drawGeometry(cmd, sceneSet, in)

	images.Transition(cmd, draw, gpu.LayoutColorAttachment, gpu.LayoutTransferSrc)
	images.Transition(cmd, target.Image, gpu.LayoutUndefined, gpu.LayoutTransferDst)
	images.Copy(cmd, draw, target.Image, c.drawExtent, target.Extent)

	images.Transition(cmd, target.Image, gpu.LayoutTransferDst, gpu.LayoutColorAttachment)
	c.drawOverlay(cmd, target)

	images.Transition(cmd, target.Image, gpu.LayoutColorAttachment, gpu.LayoutPresentSrc)
	return nil
}

func (c *Composer) sceneDescriptor(f *frame.Context, in FrameInput) (gpu.DescriptorSet, error) {
	data := c.sceneData(in)
	raw := asBytes(&data)
	buf, ok := c.sceneBuffers[f]
	if !ok {
		var err error
		if buf, err = c.alloc.CreateBuffer(uint64(len(raw)), gpu.BufferUsageUniform, gpu.MemoryCPUToGPU); err != nil {
			return gpu.Null, fmt.Errorf("create scene buffer: %w", err)
		}
		c.deletion.Push(buf)
		c.sceneBuffers[f] = buf
	}
	copy(buf.Mapped, raw)

	set, err := f.Descriptors.Allocate(c.sceneLayout)
	if err != nil {
		return gpu.Null, err
	}
	c.writer.Clear()
	c.writer.WriteBuffer(0, buf.Buffer, buf.Size, 0, gpu.DescriptorUniformBuffer)
	c.writer.UpdateSet(c.dev, set)
	return set, nil
}

func (c *Composer) sceneData(in FrameInput) SceneData {
	t := c.tunables
	data := SceneData{
		View:         in.View,
		Proj:         in.Proj,
		ViewProj:     in.Proj.Mul4(in.View),
		CameraPos:    in.CameraPos.Vec4(1),
		AmbientColor: mgl32.Vec4{0.1, 0.1, 0.1, 1},
		Parallax:     mgl32.Vec4{t.HeightScale, float32(t.ParallaxLayers), float32(t.ParallaxMode), t.LightIntensity},
	}
	n := copy(data.Lights[:], in.Lights)
	data.LightCount[0] = uint32(n)
	return data
}

func (c *Composer) drawBackground(cmd gpu.CommandBuffer) {
	effect := c.CurrentEffect()
	if effect == nil {
		return
	}
	cmd.BindPipeline(gpu.BindPointCompute, effect.Pipeline)
	cmd.BindDescriptorSets(gpu.BindPointCompute, c.effectLayout, 0, c.drawImageSet)
	cmd.PushConstants(c.effectLayout, gpu.ShaderStageCompute, 0, asBytes(&effect.Data))
	cmd.Dispatch(groups(c.drawExtent.Width), groups(c.drawExtent.Height), 1)
}

func groups(n uint32) uint32 {
	return (n + workgroupSize - 1) / workgroupSize
}

func (c *Composer) drawGeometry(cmd gpu.CommandBuffer, sceneSet gpu.DescriptorSet, in FrameInput) {
	depth := gpu.RenderingAttachment{
		View:       c.depthImage.View,
		Layout:     gpu.LayoutDepthAttachment,
		LoadOp:     gpu.LoadOpClear,
		StoreOp:    gpu.StoreOpStore,
		ClearDepth: 0,
	}
	cmd.BeginRendering(gpu.RenderingInfo{
		Area: gpu.Rect2D{Extent: c.drawExtent},
		Color: []gpu.RenderingAttachment{{
			View:    c.drawImage.View,
			Layout:  gpu.LayoutColorAttachment,
			LoadOp:  gpu.LoadOpLoad,
			StoreOp: gpu.StoreOpStore,
		}},
		Depth: &depth,
	})
	cmd.SetViewport(gpu.Viewport{
		Width:    float32(c.drawExtent.Width),
		Height:   float32(c.drawExtent.Height),
		MaxDepth: 1,
	})
	cmd.SetScissor(gpu.Rect2D{Extent: c.drawExtent})

	s := c.scene
	cmd.BindPipeline(gpu.BindPointGraphics, c.skyboxPipeline)
	cmd.BindDescriptorSets(gpu.BindPointGraphics, c.skyboxPipeLayout, 0, sceneSet, s.skyboxSet)
	c.drawMesh(cmd, c.skyboxPipeLayout, s.cube, mgl32.Ident4())

	cmd.BindPipeline(gpu.BindPointGraphics, c.meshPipeline)
	cmd.BindDescriptorSets(gpu.BindPointGraphics, c.meshLayout, 0, sceneSet, s.materialSet)
	c.drawMesh(cmd, c.meshLayout, s.mesh, mgl32.HomogRotate3DY(in.Rotation))

	cmd.BindPipeline(gpu.BindPointGraphics, c.lightPipeline)
	for _, l := range in.Lights[:min(len(in.Lights), MaxLights)] {
		world := mgl32.Translate3D(l.Position.X(), l.Position.Y(), l.Position.Z()).Mul4(mgl32.Scale3D(lightScale, lightScale, lightScale))
		c.drawMesh(cmd, c.meshLayout, s.mesh, world)
	}

	cmd.EndRendering()
}

func (c *Composer) drawMesh(cmd gpu.CommandBuffer, layout gpu.PipelineLayout, mesh *upload.GPUMesh, world mgl32.Mat4) {
	push := MeshPushConstants{World: world, VertexBuffer: mesh.VertexAddress}
	cmd.PushConstants(layout, gpu.ShaderStageAllGraphics, 0, asBytes(&push))
	cmd.BindIndexBuffer(mesh.Indices.Buffer, 0, gpu.IndexTypeUint32)
	cmd.DrawIndexed(mesh.IndexCount, 1, 0, 0, 0)
}

func (c *Composer) drawOverlay(cmd gpu.CommandBuffer, target Target) {
	cmd.BeginRendering(gpu.RenderingInfo{
		Area: gpu.Rect2D{Extent: target.Extent},
		Color: []gpu.RenderingAttachment{{
			View:    target.View,
			Layout:  gpu.LayoutColorAttachment,
			LoadOp:  gpu.LoadOpLoad,
			StoreOp: gpu.StoreOpStore,
		}},
	})
	before := c.tunables
	c.overlay.Record(cmd, target.Extent, &c.tunables)
	cmd.EndRendering()
	if c.tunables != before {
		c.ApplyTunables(c.tunables)
	}
}

// Destroy frees everything the composer created. The device must be idle.
func (c *Composer) Destroy() {
	if err := c.destroyDrawImages(); err != nil {
		core.LogError("destroy draw images: %s", err)
	}
	if err := c.deletion.Flush(); err != nil {
		core.LogError("composer deletion queue: %s", err)
	}
	clear(c.sceneBuffers)
	c.scene = nil
}

func (c *Composer) Release() error {
	c.Destroy()
	return nil
}
