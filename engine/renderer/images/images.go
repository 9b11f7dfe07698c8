// Package images records layout transitions, blits and mip chain
// generation on a command buffer.
package images

import (
	"math/bits"

	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

const cubeFaces = 6

// Barriers use the coarsest stage and access masks. There are only a few
// transitions per frame.
const (
	barrierStage     = gpu.StageAllCommands
	barrierSrcAccess = gpu.AccessMemoryWrite
	barrierDstAccess = gpu.AccessMemoryWrite | gpu.AccessMemoryRead
)

// AspectFor picks the aspect a barrier into layout touches.
func AspectFor(layout gpu.ImageLayout) gpu.ImageAspect {
	if layout == gpu.LayoutDepthAttachment {
		return gpu.AspectDepth
	}
	return gpu.AspectColor
}

// Transition moves every mip and layer of image from one layout to another.
func Transition(cmd gpu.CommandBuffer, image gpu.Image, from, to gpu.ImageLayout) {
	cmd.PipelineBarrier(barrierStage, barrierStage, gpu.ImageBarrier{
		Image:     image,
		SrcAccess: barrierSrcAccess,
		DstAccess: barrierDstAccess,
		OldLayout: from,
		NewLayout: to,
		Range: gpu.ImageSubresourceRange{
			Aspect:     AspectFor(to),
			LevelCount: gpu.RemainingMipLevels,
			LayerCount: gpu.RemainingArrayLayers,
		},
	})
}

// Copy blits the first mip of src (in LayoutTransferSrc) onto dst (in
// LayoutTransferDst) with linear filtering, so sizes and formats may differ.
func Copy(cmd gpu.CommandBuffer, src, dst gpu.Image, srcSize, dstSize gpu.Extent2D) {
	region := gpu.ImageBlit{
		SrcSubresource: colorLayers(0, 0, 1),
		SrcOffsets:     [2]gpu.Offset3D{{}, corner(srcSize)},
		DstSubresource: colorLayers(0, 0, 1),
		DstOffsets:     [2]gpu.Offset3D{{}, corner(dstSize)},
	}
	cmd.BlitImage(src, gpu.LayoutTransferSrc, dst, gpu.LayoutTransferDst, []gpu.ImageBlit{region}, gpu.FilterLinear)
}

// MipLevels is floor(log2(max(w, h))) + 1.
func MipLevels(size gpu.Extent2D) uint32 {
	m := max(size.Width, size.Height)
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}

// HalfExtent is the extent of the next mip level. Each axis halves,
// rounding down, and stops at 1.
func HalfExtent(size gpu.Extent2D) gpu.Extent2D {
	return gpu.Extent2D{
		Width:  max(size.Width/2, 1),
		Height: max(size.Height/2, 1),
	}
}

// GenerateMipmaps fills every mip of a single layer image from level 0.
// All levels must be in LayoutTransferDst. They end in LayoutShaderReadOnly.
func GenerateMipmaps(cmd gpu.CommandBuffer, image gpu.Image, size gpu.Extent2D) {
	generate(cmd, image, size, 1)
}

// GenerateCubemapMipmaps is GenerateMipmaps for the six faces of a cubemap.
// Each mip step uses one barrier over all faces and one blit per face.
func GenerateCubemapMipmaps(cmd gpu.CommandBuffer, image gpu.Image, size gpu.Extent2D) {
	generate(cmd, image, size, cubeFaces)
}

func generate(cmd gpu.CommandBuffer, image gpu.Image, size gpu.Extent2D, layers uint32) {
	levels := MipLevels(size)
	for mip := uint32(0); mip < levels; mip++ {
		cmd.PipelineBarrier(barrierStage, barrierStage, gpu.ImageBarrier{
			Image:     image,
			SrcAccess: barrierSrcAccess,
			DstAccess: barrierDstAccess,
			OldLayout: gpu.LayoutTransferDst,
			NewLayout: gpu.LayoutTransferSrc,
			Range: gpu.ImageSubresourceRange{
				Aspect:       gpu.AspectColor,
				BaseMipLevel: mip,
				LevelCount:   1,
				LayerCount:   layers,
			},
		})
		if mip == levels-1 {
			break
		}

		half := HalfExtent(size)
		regions := make([]gpu.ImageBlit, 0, layers)
		for face := uint32(0); face < layers; face++ {
			regions = append(regions, gpu.ImageBlit{
				SrcSubresource: colorLayers(mip, face, 1),
				SrcOffsets:     [2]gpu.Offset3D{{}, corner(size)},
				DstSubresource: colorLayers(mip+1, face, 1),
				DstOffsets:     [2]gpu.Offset3D{{}, corner(half)},
			})
		}
		for i := range regions {
			cmd.BlitImage(image, gpu.LayoutTransferSrc, image, gpu.LayoutTransferDst, regions[i:i+1], gpu.FilterLinear)
		}
		size = half
	}

	// every level is now transfer src
	cmd.PipelineBarrier(barrierStage, barrierStage, gpu.ImageBarrier{
		Image:     image,
		SrcAccess: barrierSrcAccess,
		DstAccess: gpu.AccessMemoryRead,
		OldLayout: gpu.LayoutTransferSrc,
		NewLayout: gpu.LayoutShaderReadOnly,
		Range: gpu.ImageSubresourceRange{
			Aspect:     gpu.AspectColor,
			LevelCount: gpu.RemainingMipLevels,
			LayerCount: layers,
		},
	})
}

func colorLayers(mip, layer, count uint32) gpu.ImageSubresourceLayers {
	return gpu.ImageSubresourceLayers{
		Aspect:         gpu.AspectColor,
		MipLevel:       mip,
		BaseArrayLayer: layer,
		LayerCount:     count,
	}
}

func corner(size gpu.Extent2D) gpu.Offset3D {
	return gpu.Offset3D{X: int32(size.Width), Y: int32(size.Height), Z: 1}
}
