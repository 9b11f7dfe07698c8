package vulkan

import (
	"errors"
	"reflect"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

func TestLoadDeviceProcsWithoutLoader(t *testing.T) {
	p, err := loadDeviceProcs(nil, nil, nil)
	if !errors.Is(err, gpu.ErrUnsupportedFeature) {
		t.Fatalf("got %v, want %v", err, gpu.ErrUnsupportedFeature)
	}
	if got := p.missing(); !reflect.DeepEqual(got, deviceProcNames) {
		t.Fatalf("got missing %v, want %v", got, deviceProcNames)
	}
}

func TestUnloadedProcsDoNotCall(t *testing.T) {
	var p deviceProcs
	p.beginRendering(nil, &vk.RenderingInfo{SType: vk.StructureTypeRenderingInfo})
	p.endRendering(nil)
	info := vk.BufferDeviceAddressInfo{SType: vk.StructureTypeBufferDeviceAddressInfo}
	if got := p.bufferDeviceAddress(nil, &info); got != 0 {
		t.Fatalf("got address %#x, want 0", got)
	}
}
