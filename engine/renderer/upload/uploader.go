package upload

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/images"
	"github.com/spaghettifunk/lantern/engine/renderer/resources"
)

// Vertex matches the interleaved layout the shaders read through the
// vertex buffer device address.
type Vertex struct {
	Position mgl32.Vec3
	UVX      float32
	Normal   mgl32.Vec3
	UVY      float32
	Color    mgl32.Vec4
}

const VertexSize = uint64(unsafe.Sizeof(Vertex{}))

// VertexBytes views vertices as raw bytes without copying.
func VertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), uint64(len(vertices))*VertexSize)
}

func indexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
}

// GPUMesh is a mesh resident in device memory. Shaders fetch vertices
// through VertexAddress.
type GPUMesh struct {
	Indices       *resources.AllocatedBuffer
	Vertices      *resources.AllocatedBuffer
	VertexAddress uint64
	IndexCount    uint32
}

func (m *GPUMesh) Release() error {
	return errors.Join(m.Indices.Release(), m.Vertices.Release())
}

// Uploader copies CPU data into device local memory through a staging
// buffer and the immediate submitter. Every call blocks until the copy
// has executed and frees its staging buffer before returning.
type Uploader struct {
	alloc *resources.Allocator
	imm   *ImmediateSubmitter
}

func NewUploader(alloc *resources.Allocator, imm *ImmediateSubmitter) *Uploader {
	return &Uploader{alloc: alloc, imm: imm}
}

func (u *Uploader) staging(data ...[]byte) (*resources.AllocatedBuffer, error) {
	var size uint64
	for _, d := range data {
		size += uint64(len(d))
	}
	buf, err := u.alloc.CreateBuffer(size, gpu.BufferUsageTransferSrc, gpu.MemoryCPUOnly)
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	off := 0
	for _, d := range data {
		off += copy(buf.Mapped[off:], d)
	}
	return buf, nil
}

func (u *Uploader) UploadMesh(indices []uint32, vertices []Vertex) (*GPUMesh, error) {
	if len(indices) == 0 || len(vertices) == 0 {
		return nil, errors.New("upload of empty mesh")
	}
	vdata, idata := VertexBytes(vertices), indexBytes(indices)

	vbuf, err := u.alloc.CreateBuffer(uint64(len(vdata)),
		gpu.BufferUsageStorage|gpu.BufferUsageTransferDst|gpu.BufferUsageTransferSrc|gpu.BufferUsageShaderDeviceAddress,
		gpu.MemoryGPUOnly)
	if err != nil {
		return nil, err
	}
	ibuf, err := u.alloc.CreateBuffer(uint64(len(idata)),
		gpu.BufferUsageIndex|gpu.BufferUsageTransferDst|gpu.BufferUsageTransferSrc,
		gpu.MemoryGPUOnly)
	if err != nil {
		vbuf.Release()
		return nil, err
	}
	mesh := &GPUMesh{
		Indices:       ibuf,
		Vertices:      vbuf,
		VertexAddress: vbuf.Address,
		IndexCount:    uint32(len(indices)),
	}

	staging, err := u.staging(vdata, idata)
	if err != nil {
		mesh.Release()
		return nil, err
	}
	defer staging.Release()

	vsize, isize := uint64(len(vdata)), uint64(len(idata))
	err = u.imm.Submit(func(cmd gpu.CommandBuffer) {
		cmd.CopyBuffer(staging.Buffer, vbuf.Buffer, gpu.BufferCopy{Size: vsize})
		cmd.CopyBuffer(staging.Buffer, ibuf.Buffer, gpu.BufferCopy{SrcOffset: vsize, Size: isize})
	})
	if err != nil {
		mesh.Release()
		return nil, fmt.Errorf("upload mesh: %w", err)
	}
	return mesh, nil
}

// UploadImage creates a sampled image from tightly packed pixels. With
// mipmapped set the full chain is generated from the uploaded level.
func (u *Uploader) UploadImage(pixels []byte, extent gpu.Extent3D, format gpu.Format, usage gpu.ImageUsage, mipmapped bool) (*resources.AllocatedImage, error) {
	if extent.Depth == 0 {
		extent.Depth = 1
	}
	if want := imageBytes(extent, format); uint64(len(pixels)) != want {
		return nil, fmt.Errorf("upload image: got %d bytes, want %d for %dx%d", len(pixels), want, extent.Width, extent.Height)
	}
	return u.uploadLayers([][]byte{pixels}, extent, format, usage, mipmapped, false)
}

// UploadCubemap creates a cubemap from six faces in +X, -X, +Y, -Y, +Z, -Z
// order.
func (u *Uploader) UploadCubemap(faces [6][]byte, extent gpu.Extent3D, format gpu.Format, usage gpu.ImageUsage, mipmapped bool) (*resources.AllocatedImage, error) {
	if extent.Depth == 0 {
		extent.Depth = 1
	}
	want := imageBytes(extent, format)
	for i, f := range faces {
		if uint64(len(f)) != want {
			return nil, fmt.Errorf("upload cubemap face %d: got %d bytes, want %d", i, len(f), want)
		}
	}
	return u.uploadLayers(faces[:], extent, format, usage, mipmapped, true)
}

func imageBytes(extent gpu.Extent3D, format gpu.Format) uint64 {
	return uint64(extent.Width) * uint64(extent.Height) * uint64(extent.Depth) * uint64(format.BytesPerPixel())
}

func (u *Uploader) uploadLayers(layers [][]byte, extent gpu.Extent3D, format gpu.Format, usage gpu.ImageUsage, mipmapped, cube bool) (*resources.AllocatedImage, error) {
	usage |= gpu.ImageUsageTransferDst
	if mipmapped {
		usage |= gpu.ImageUsageTransferSrc
	}
	var (
		img *resources.AllocatedImage
		err error
	)
	if cube {
		img, err = u.alloc.CreateCubemap(extent, format, usage, mipmapped)
	} else {
		img, err = u.alloc.CreateImage(extent, format, usage, mipmapped)
	}
	if err != nil {
		return nil, err
	}

	staging, err := u.staging(layers...)
	if err != nil {
		img.Release()
		return nil, err
	}
	defer staging.Release()

	layerSize := imageBytes(extent, format)
	regions := make([]gpu.BufferImageCopy, len(layers))
	for i := range layers {
		regions[i] = gpu.BufferImageCopy{
			BufferOffset: uint64(i) * layerSize,
			ImageSubresource: gpu.ImageSubresourceLayers{
				Aspect:         gpu.AspectColor,
				BaseArrayLayer: uint32(i),
				LayerCount:     1,
			},
			ImageExtent: extent,
		}
	}

	err = u.imm.Submit(func(cmd gpu.CommandBuffer) {
		images.Transition(cmd, img.Image, gpu.LayoutUndefined, gpu.LayoutTransferDst)
		cmd.CopyBufferToImage(staging.Buffer, img.Image, gpu.LayoutTransferDst, regions...)
		switch {
		case mipmapped && cube:
			images.GenerateCubemapMipmaps(cmd, img.Image, extent.To2D())
		case mipmapped:
			images.GenerateMipmaps(cmd, img.Image, extent.To2D())
		default:
			images.Transition(cmd, img.Image, gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly)
		}
	})
	if err != nil {
		img.Release()
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return img, nil
}

// ReadBuffer copies size bytes at offset of a device buffer back to the
// host.
func (u *Uploader) ReadBuffer(src *resources.AllocatedBuffer, offset, size uint64) ([]byte, error) {
	if offset+size > src.Size {
		return nil, fmt.Errorf("read of %d bytes at %d past buffer end %d", size, offset, src.Size)
	}
	readback, err := u.alloc.CreateBuffer(size, gpu.BufferUsageTransferDst, gpu.MemoryGPUToCPU)
	if err != nil {
		return nil, fmt.Errorf("create readback buffer: %w", err)
	}
	defer readback.Release()

	err = u.imm.Submit(func(cmd gpu.CommandBuffer) {
		cmd.CopyBuffer(src.Buffer, readback.Buffer, gpu.BufferCopy{SrcOffset: offset, Size: size})
	})
	if err != nil {
		return nil, fmt.Errorf("read buffer: %w", err)
	}
	out := make([]byte, size)
	copy(out, readback.Mapped)
	return out, nil
}
