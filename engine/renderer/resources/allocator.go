package resources

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/images"
)

// AllocatedBuffer is a buffer together with its memory. Mapped is set for
// host visible memory and Address when the buffer was created with
// BufferUsageShaderDeviceAddress.
type AllocatedBuffer struct {
	ID      uuid.UUID
	Buffer  gpu.Buffer
	Size    uint64
	Usage   gpu.BufferUsage
	Memory  gpu.MemoryUsage
	Mapped  []byte
	Address uint64

	alloc *Allocator
}

func (b *AllocatedBuffer) Release() error {
	return b.alloc.DestroyBuffer(b)
}

// AllocatedImage is an image, its memory and a view over every mip and
// layer.
type AllocatedImage struct {
	ID        uuid.UUID
	Image     gpu.Image
	View      gpu.ImageView
	Extent    gpu.Extent3D
	Format    gpu.Format
	MipLevels uint32
	Layers    uint32

	alloc *Allocator
}

func (i *AllocatedImage) Release() error {
	return i.alloc.DestroyImage(i)
}

func (i *AllocatedImage) Extent2D() gpu.Extent2D {
	return i.Extent.To2D()
}

// Allocation describes one live allocation for leak reports.
type Allocation struct {
	ID    uuid.UUID
	Kind  gpu.ObjectKind
	Bytes uint64
}

// Allocator creates buffers and images and remembers every allocation it
// handed out until it is destroyed exactly once.
type Allocator struct {
	dev  gpu.Device
	live map[uuid.UUID]Allocation
}

func NewAllocator(dev gpu.Device) *Allocator {
	return &Allocator{
		dev:  dev,
		live: make(map[uuid.UUID]Allocation),
	}
}

func (a *Allocator) Device() gpu.Device {
	return a.dev
}

func (a *Allocator) CreateBuffer(size uint64, usage gpu.BufferUsage, memory gpu.MemoryUsage) (*AllocatedBuffer, error) {
	h, err := a.dev.CreateBuffer(gpu.BufferDesc{Size: size, Usage: usage, Memory: memory})
	if err != nil {
		return nil, fmt.Errorf("create buffer of %d bytes: %w", size, err)
	}
	b := &AllocatedBuffer{
		ID:     uuid.New(),
		Buffer: h,
		Size:   size,
		Usage:  usage,
		Memory: memory,
		alloc:  a,
	}
	if memory.HostVisible() {
		if b.Mapped, err = a.dev.MapBuffer(h); err != nil {
			a.dev.Destroy(h)
			return nil, fmt.Errorf("map buffer: %w", err)
		}
	}
	if usage&gpu.BufferUsageShaderDeviceAddress != 0 {
		b.Address = a.dev.BufferDeviceAddress(h)
	}
	a.live[b.ID] = Allocation{ID: b.ID, Kind: gpu.ObjectKindBuffer, Bytes: size}
	return b, nil
}

func (a *Allocator) DestroyBuffer(b *AllocatedBuffer) error {
	if _, ok := a.live[b.ID]; !ok {
		return fmt.Errorf("buffer %s: %w", b.ID, core.ErrAlreadyDestroyed)
	}
	delete(a.live, b.ID)
	a.dev.Destroy(b.Buffer)
	b.Mapped = nil
	return nil
}

// CreateImage creates a 2D image. A mipmapped image gets the full chain
// down to 1x1.
func (a *Allocator) CreateImage(extent gpu.Extent3D, format gpu.Format, usage gpu.ImageUsage, mipmapped bool) (*AllocatedImage, error) {
	return a.createImage(extent, format, usage, mipmapped, 1)
}

// CreateCubemap creates a six layer cube compatible image viewed as a cube.
func (a *Allocator) CreateCubemap(extent gpu.Extent3D, format gpu.Format, usage gpu.ImageUsage, mipmapped bool) (*AllocatedImage, error) {
	return a.createImage(extent, format, usage, mipmapped, 6)
}

func (a *Allocator) createImage(extent gpu.Extent3D, format gpu.Format, usage gpu.ImageUsage, mipmapped bool, layers uint32) (*AllocatedImage, error) {
	if extent.Depth == 0 {
		extent.Depth = 1
	}
	mips := uint32(1)
	if mipmapped {
		mips = images.MipLevels(extent.To2D())
	}
	h, err := a.dev.CreateImage(gpu.ImageDesc{
		Extent:      extent,
		Format:      format,
		Usage:       usage,
		MipLevels:   mips,
		ArrayLayers: layers,
		Cube:        layers == 6,
	})
	if err != nil {
		return nil, fmt.Errorf("create %dx%d image: %w", extent.Width, extent.Height, err)
	}

	aspect := gpu.AspectColor
	if format.IsDepth() {
		aspect = gpu.AspectDepth
	}
	viewType := gpu.ViewType2D
	if layers == 6 {
		viewType = gpu.ViewTypeCube
	}
	view, err := a.dev.CreateImageView(gpu.ImageViewDesc{
		Image:     h,
		Format:    format,
		Type:      viewType,
		Aspect:    aspect,
		MipLevels: mips,
		Layers:    layers,
	})
	if err != nil {
		a.dev.Destroy(h)
		return nil, fmt.Errorf("create image view: %w", err)
	}

	img := &AllocatedImage{
		ID:        uuid.New(),
		Image:     h,
		View:      view,
		Extent:    extent,
		Format:    format,
		MipLevels: mips,
		Layers:    layers,
		alloc:     a,
	}
	bytes := uint64(extent.Width) * uint64(extent.Height) * uint64(format.BytesPerPixel()) * uint64(layers)
	a.live[img.ID] = Allocation{ID: img.ID, Kind: gpu.ObjectKindImage, Bytes: bytes}
	return img, nil
}

func (a *Allocator) DestroyImage(i *AllocatedImage) error {
	if _, ok := a.live[i.ID]; !ok {
		return fmt.Errorf("image %s: %w", i.ID, core.ErrAlreadyDestroyed)
	}
	delete(a.live, i.ID)
	a.dev.Destroy(i.View, i.Image)
	return nil
}

// Live lists outstanding allocations, largest first.
func (a *Allocator) Live() []Allocation {
	out := make([]Allocation, 0, len(a.live))
	for _, l := range a.live {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Release reports allocations that were never destroyed and returns how
// many there were.
func (a *Allocator) Release() int {
	leaks := a.Live()
	for _, l := range leaks {
		core.LogWarn("leaked %s allocation %s (%d bytes)", l.Kind, l.ID, l.Bytes)
	}
	return len(leaks)
}
