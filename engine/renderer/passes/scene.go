package passes

import (
	"fmt"

	"github.com/spaghettifunk/lantern/engine/assets"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/resources"
	"github.com/spaghettifunk/lantern/engine/renderer/upload"
)

const checkerSize = 16

// SceneAssets are the decoded inputs of the fixed scene. A nil texture, or
// a skybox with any nil face, is replaced by the checkerboard.
type SceneAssets struct {
	Albedo     *assets.Image
	Normal     *assets.Image
	MetalRough *assets.Image
	Height     *assets.Image
	Skybox     [6]*assets.Image
}

type gpuScene struct {
	mesh        *upload.GPUMesh
	cube        *upload.GPUMesh
	textures    [4]*resources.AllocatedImage
	skybox      *resources.AllocatedImage
	materialSet gpu.DescriptorSet
	skyboxSet   gpu.DescriptorSet
}

// LoadScene uploads meshes and textures and writes the material and
// skybox descriptor sets. Everything is released with the composer.
func (c *Composer) LoadScene(u *upload.Uploader, a SceneAssets) error {
	s := &gpuScene{}

	vertices, indices := assets.Sphere(1, 32, 64)
	mesh, err := u.UploadMesh(indices, vertices)
	if err != nil {
		return fmt.Errorf("upload scene mesh: %w", err)
	}
	c.deletion.Push(mesh)
	s.mesh = mesh

	vertices, indices = assets.Cube()
	cube, err := u.UploadMesh(indices, vertices)
	if err != nil {
		return fmt.Errorf("upload skybox cube: %w", err)
	}
	c.deletion.Push(cube)
	s.cube = cube

	textures := [4]struct {
		name   string
		img    *assets.Image
		format gpu.Format
	}{
		{"albedo", a.Albedo, gpu.FormatR8G8B8A8Srgb},
		{"normal", a.Normal, gpu.FormatR8G8B8A8Unorm},
		{"metal_rough", a.MetalRough, gpu.FormatR8G8B8A8Unorm},
		{"height", a.Height, gpu.FormatR8G8B8A8Unorm},
	}
	for i, t := range textures {
		img := t.img
		if img != nil && img.HDR {
			core.LogWarn("%s texture is HDR, only the skybox takes float pixels", t.name)
			img = nil
		}
		if img == nil {
			core.LogWarn("%s texture missing, using checkerboard", t.name)
			img = assets.Checkerboard(checkerSize)
		}
		extent := gpu.Extent3D{Width: img.Width, Height: img.Height, Depth: 1}
		tex, err := u.UploadImage(img.Pixels, extent, t.format, gpu.ImageUsageSampled, true)
		if err != nil {
			return fmt.Errorf("upload %s texture: %w", t.name, err)
		}
		c.deletion.Push(tex)
		s.textures[i] = tex
	}

	faces, size, format := skyboxFaces(a.Skybox)
	extent := gpu.Extent3D{Width: size, Height: size, Depth: 1}
	sky, err := u.UploadCubemap(faces, extent, format, gpu.ImageUsageSampled, true)
	if err != nil {
		return fmt.Errorf("upload skybox: %w", err)
	}
	c.deletion.Push(sky)
	s.skybox = sky

	if s.materialSet, err = c.globalDescriptors.Allocate(c.materialLayout); err != nil {
		return err
	}
	c.writer.Clear()
	for i, tex := range s.textures {
		c.writer.WriteImage(uint32(i), tex.View, c.sampler, gpu.LayoutShaderReadOnly, gpu.DescriptorCombinedImageSampler)
	}
	c.writer.UpdateSet(c.dev, s.materialSet)

	if s.skyboxSet, err = c.globalDescriptors.Allocate(c.skyboxLayout); err != nil {
		return err
	}
	c.writer.Clear()
	c.writer.WriteImage(0, sky.View, c.sampler, gpu.LayoutShaderReadOnly, gpu.DescriptorCombinedImageSampler)
	c.writer.UpdateSet(c.dev, s.skyboxSet)

	c.scene = s
	return nil
}

// skyboxFaces returns the face pixels, their common edge length and the
// cubemap format. Faces must be square, present and agree on HDR;
// otherwise all six become checkerboards.
func skyboxFaces(in [6]*assets.Image) ([6][]byte, uint32, gpu.Format) {
	var out [6][]byte
	size := uint32(0)
	ok := in[0] != nil && in[0].Width == in[0].Height
	if ok {
		size = in[0].Width
		for _, f := range in {
			if f == nil || f.Width != size || f.Height != size || f.HDR != in[0].HDR {
				ok = false
				break
			}
		}
	}
	if !ok {
		core.LogWarn("skybox incomplete, using checkerboard faces")
		checker := assets.Checkerboard(checkerSize)
		for i := range out {
			out[i] = checker.Pixels
		}
		return out, checkerSize, gpu.FormatR8G8B8A8Srgb
	}
	for i, f := range in {
		out[i] = f.Pixels
	}
	if in[0].HDR {
		return out, size, gpu.FormatR16G16B16A16Sfloat
	}
	return out, size, gpu.FormatR8G8B8A8Srgb
}
