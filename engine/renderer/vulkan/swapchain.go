package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := check("vkGetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(d.physical.handle, d.surface, &caps)); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return gpu.SurfaceCapabilities{
		CurrentExtent: gpu.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinExtent:     gpu.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxExtent:     gpu.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
	}, nil
}

func (d *Device) surfaceFormat(want vk.Format) (vk.SurfaceFormat, error) {
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(d.physical.handle, d.surface, &count, nil)
	if count == 0 {
		return vk.SurfaceFormat{}, fmt.Errorf("surface reports no formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(d.physical.handle, d.surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == want && formats[i].ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return formats[i], nil
		}
	}
	core.LogWarn("surface format %d unavailable, falling back to %d", want, formats[0].Format)
	return formats[0], nil
}

func (d *Device) presentMode(want vk.PresentMode) vk.PresentMode {
	var count uint32
	vk.GetPhysicalDeviceSurfacePresentModes(d.physical.handle, d.surface, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(d.physical.handle, d.surface, &count, modes)
	for _, m := range modes {
		if m == want {
			return m
		}
	}
	// FIFO is the only mode every implementation must support.
	return vk.PresentModeFifo
}

func (d *Device) CreateSwapchain(desc gpu.SwapchainDesc) (*gpu.SwapchainImages, error) {
	format, err := d.surfaceFormat(toFormat(desc.Format))
	if err != nil {
		return nil, err
	}
	var caps vk.SurfaceCapabilities
	if err := check("vkGetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(d.physical.handle, d.surface, &caps)); err != nil {
		return nil, err
	}
	caps.Deref()

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    desc.ImageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      toExtent2D(desc.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       toImageUsage(desc.Usage),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      d.presentMode(toPresentMode(desc.PresentMode)),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	sc := &swapchain{}
	if err := check("vkCreateSwapchain", vk.CreateSwapchain(d.device, &info, nil, &sc.handle)); err != nil {
		return nil, err
	}

	var count uint32
	if err := check("vkGetSwapchainImages", vk.GetSwapchainImages(d.device, sc.handle, &count, nil)); err != nil {
		vk.DestroySwapchain(d.device, sc.handle, nil)
		return nil, err
	}
	handles := make([]vk.Image, count)
	if err := check("vkGetSwapchainImages", vk.GetSwapchainImages(d.device, sc.handle, &count, handles)); err != nil {
		vk.DestroySwapchain(d.device, sc.handle, nil)
		return nil, err
	}

	out := &gpu.SwapchainImages{
		Format: fromFormat(format.Format),
		Extent: desc.Extent,
	}
	imageDesc := gpu.ImageDesc{
		Extent:      desc.Extent.To3D(),
		Format:      out.Format,
		Usage:       desc.Usage,
		MipLevels:   1,
		ArrayLayers: 1,
	}
	for _, h := range handles {
		id := register(d, d.handles.images, &image{handle: h, desc: imageDesc})
		sc.images = append(sc.images, id)
		out.Images = append(out.Images, gpu.Image(id))

		view, err := d.createView(h, gpu.ImageViewDesc{
			Image:     gpu.Image(id),
			Format:    out.Format,
			Type:      gpu.ViewType2D,
			Aspect:    gpu.AspectColor,
			MipLevels: 1,
			Layers:    1,
		})
		if err != nil {
			for _, v := range out.Views {
				d.Destroy(v)
			}
			out.Handle = gpu.Swapchain(register(d, d.handles.swapchains, sc))
			d.Destroy(out.Handle)
			return nil, err
		}
		out.Views = append(out.Views, view)
	}
	out.Handle = gpu.Swapchain(register(d, d.handles.swapchains, sc))
	core.LogDebug("swapchain created: %dx%d, %d images", desc.Extent.Width, desc.Extent.Height, count)
	return out, nil
}

func (d *Device) AcquireNextImage(h gpu.Swapchain, sem gpu.Semaphore, timeout time.Duration) (uint32, bool, error) {
	sc, ok := lookup(d, d.handles.swapchains, uint64(h))
	if !ok {
		return 0, false, fmt.Errorf("acquire from swapchain %#x: %w", uint64(h), core.ErrUnknownHandle)
	}
	var index uint32
	res := vk.AcquireNextImage(d.device, sc.handle, uint64(timeout.Nanoseconds()), d.semaphore(sem), vk.NullFence, &index)
	if res == vk.Suboptimal {
		return index, true, nil
	}
	if err := check("vkAcquireNextImage", res); err != nil {
		return 0, false, err
	}
	return index, false, nil
}

func (d *Device) Present(info gpu.PresentInfo) (bool, error) {
	sc, ok := lookup(d, d.handles.swapchains, uint64(info.Swapchain))
	if !ok {
		return false, fmt.Errorf("present to swapchain %#x: %w", uint64(info.Swapchain), core.ErrUnknownHandle)
	}
	wait := make([]vk.Semaphore, len(info.Wait))
	for i, s := range info.Wait {
		wait[i] = d.semaphore(s)
	}
	present := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(wait)),
		PWaitSemaphores:    wait,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	var res vk.Result
	d.locks.SafeCall(QueueManagement, func() error {
		res = vk.QueuePresent(d.queue, &present)
		return nil
	})
	if res == vk.Suboptimal {
		return true, nil
	}
	return false, check("vkQueuePresent", res)
}
