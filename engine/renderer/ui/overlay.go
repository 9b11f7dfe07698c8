// Package ui is the seam for a debug overlay drawn on top of the final
// image.
package ui

import (
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// Overlay records its draws into cmd while a rendering scope targeting the
// swapchain image is open. It may edit tunables, which take effect on the
// next frame.
type Overlay interface {
	Record(cmd gpu.CommandBuffer, extent gpu.Extent2D, tunables *core.Tunables)
}

// Nop draws nothing.
type Nop struct{}

func (Nop) Record(gpu.CommandBuffer, gpu.Extent2D, *core.Tunables) {}
