package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// allocate binds one dedicated allocation per resource. The renderer
// creates few, long lived resources, so there is no sub-allocation.
func (d *Device) allocate(reqs vk.MemoryRequirements, usage gpu.MemoryUsage, deviceAddress bool) (vk.DeviceMemory, error) {
	reqs.Deref()
	required, preferred := memoryFlags(usage)
	index, err := d.physical.findMemoryIndex(reqs.MemoryTypeBits, required, preferred)
	if err != nil {
		return nil, err
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	flags := vk.MemoryAllocateFlagsInfo{
		SType: vk.StructureTypeMemoryAllocateFlagsInfo,
		Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
	}
	if deviceAddress {
		info.PNext = unsafe.Pointer(&flags)
	}
	var memory vk.DeviceMemory
	if err := check("vkAllocateMemory", vk.AllocateMemory(d.device, &info, nil, &memory)); err != nil {
		return nil, err
	}
	return memory, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       toBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	b := &buffer{size: desc.Size}
	if err := check("vkCreateBuffer", vk.CreateBuffer(d.device, &info, nil, &b.handle)); err != nil {
		return gpu.Null, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, b.handle, &reqs)
	deviceAddress := desc.Usage&gpu.BufferUsageShaderDeviceAddress != 0
	memory, err := d.allocate(reqs, desc.Memory, deviceAddress)
	if err != nil {
		vk.DestroyBuffer(d.device, b.handle, nil)
		return gpu.Null, fmt.Errorf("buffer of %d bytes: %w", desc.Size, err)
	}
	b.memory = memory
	if err := check("vkBindBufferMemory", vk.BindBufferMemory(d.device, b.handle, memory, 0)); err != nil {
		vk.DestroyBuffer(d.device, b.handle, nil)
		vk.FreeMemory(d.device, memory, nil)
		return gpu.Null, err
	}

	if desc.Memory.HostVisible() {
		var data unsafe.Pointer
		if err := check("vkMapMemory", vk.MapMemory(d.device, memory, 0, vk.DeviceSize(desc.Size), 0, &data)); err != nil {
			vk.DestroyBuffer(d.device, b.handle, nil)
			vk.FreeMemory(d.device, memory, nil)
			return gpu.Null, err
		}
		b.mapped = unsafe.Slice((*byte)(data), desc.Size)
	}
	if deviceAddress {
		addressInfo := vk.BufferDeviceAddressInfo{
			SType:  vk.StructureTypeBufferDeviceAddressInfo,
			Buffer: b.handle,
		}
		b.address = d.procs.bufferDeviceAddress(d.device, &addressInfo)
	}
	return gpu.Buffer(register(d, d.handles.buffers, b)), nil
}

func (d *Device) MapBuffer(h gpu.Buffer) ([]byte, error) {
	b, ok := lookup(d, d.handles.buffers, uint64(h))
	if !ok {
		return nil, fmt.Errorf("map buffer %#x: unknown handle", uint64(h))
	}
	if b.mapped == nil {
		return nil, fmt.Errorf("map buffer %#x: not host visible", uint64(h))
	}
	return b.mapped, nil
}

func (d *Device) BufferDeviceAddress(h gpu.Buffer) uint64 {
	b, ok := lookup(d, d.handles.buffers, uint64(h))
	if !ok {
		return 0
	}
	return b.address
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	var flags vk.ImageCreateFlags
	if desc.Cube {
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	info := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		Flags:         flags,
		ImageType:     vk.ImageType2d,
		Format:        toFormat(desc.Format),
		Extent:        toExtent3D(desc.Extent),
		MipLevels:     max(desc.MipLevels, 1),
		ArrayLayers:   max(desc.ArrayLayers, 1),
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img := &image{desc: desc}
	if err := check("vkCreateImage", vk.CreateImage(d.device, &info, nil, &img.handle)); err != nil {
		return gpu.Null, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, img.handle, &reqs)
	memory, err := d.allocate(reqs, gpu.MemoryGPUOnly, false)
	if err != nil {
		vk.DestroyImage(d.device, img.handle, nil)
		return gpu.Null, fmt.Errorf("image %dx%d: %w", desc.Extent.Width, desc.Extent.Height, err)
	}
	img.memory = memory
	if err := check("vkBindImageMemory", vk.BindImageMemory(d.device, img.handle, memory, 0)); err != nil {
		vk.DestroyImage(d.device, img.handle, nil)
		vk.FreeMemory(d.device, memory, nil)
		return gpu.Null, err
	}
	return gpu.Image(register(d, d.handles.images, img)), nil
}

func (d *Device) CreateImageView(desc gpu.ImageViewDesc) (gpu.ImageView, error) {
	img, ok := lookup(d, d.handles.images, uint64(desc.Image))
	if !ok {
		return gpu.Null, fmt.Errorf("image view of %#x: unknown image", uint64(desc.Image))
	}
	return d.createView(img.handle, desc)
}

func (d *Device) createView(handle vk.Image, desc gpu.ImageViewDesc) (gpu.ImageView, error) {
	viewType := vk.ImageViewType2d
	if desc.Type == gpu.ViewTypeCube {
		viewType = vk.ImageViewTypeCube
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: viewType,
		Format:   toFormat(desc.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     toAspect(desc.Aspect),
			BaseMipLevel:   0,
			LevelCount:     max(desc.MipLevels, 1),
			BaseArrayLayer: 0,
			LayerCount:     max(desc.Layers, 1),
		},
	}
	var view vk.ImageView
	if err := check("vkCreateImageView", vk.CreateImageView(d.device, &info, nil, &view)); err != nil {
		return gpu.Null, err
	}
	return gpu.ImageView(register(d, d.handles.views, view)), nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        toFilter(desc.MagFilter),
		MinFilter:        toFilter(desc.MinFilter),
		MipmapMode:       vk.SamplerMipmapModeLinear,
		AddressModeU:     vk.SamplerAddressModeRepeat,
		AddressModeV:     vk.SamplerAddressModeRepeat,
		AddressModeW:     vk.SamplerAddressModeRepeat,
		AnisotropyEnable: vk.True,
		MaxAnisotropy:    d.physical.properties.Limits.MaxSamplerAnisotropy,
		CompareOp:        vk.CompareOpAlways,
		MinLod:           0,
		MaxLod:           desc.MaxLod,
		BorderColor:      vk.BorderColorIntOpaqueBlack,
	}
	var sampler vk.Sampler
	if err := check("vkCreateSampler", vk.CreateSampler(d.device, &info, nil, &sampler)); err != nil {
		return gpu.Null, err
	}
	return gpu.Sampler(register(d, d.handles.samplers, sampler)), nil
}

// CreateShaderModule takes SPIR-V words as little endian bytes.
func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return gpu.Null, fmt.Errorf("shader code of %d bytes is not SPIR-V", len(code))
	}
	words := make([]uint32, len(code)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(code)), code)
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if err := check("vkCreateShaderModule", vk.CreateShaderModule(d.device, &info, nil, &module)); err != nil {
		return gpu.Null, err
	}
	return gpu.ShaderModule(register(d, d.handles.shaders, module)), nil
}
