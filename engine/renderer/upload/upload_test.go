package upload

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lantern/engine/renderer/images"
	"github.com/spaghettifunk/lantern/engine/renderer/resources"
)

func newUploader(t *testing.T) (*gputest.Device, *resources.Allocator, *Uploader) {
	t.Helper()
	dev := gputest.New()
	imm, err := NewImmediateSubmitter(dev, time.Second)
	if err != nil {
		t.Fatalf("NewImmediateSubmitter: %v", err)
	}
	alloc := resources.NewAllocator(dev)
	return dev, alloc, NewUploader(alloc, imm)
}

func checkViolations(t *testing.T, dev *gputest.Device) {
	t.Helper()
	if v := dev.Violations(); len(v) > 0 {
		t.Fatalf("device violations: %v", v)
	}
}

func quad() ([]uint32, []Vertex) {
	vertices := []Vertex{
		{Position: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec4{0, 0, 0, 1}},
		{Position: mgl32.Vec3{0.5, 0.5, 0}, UVX: 1, Color: mgl32.Vec4{0.5, 0.5, 0.5, 1}},
		{Position: mgl32.Vec3{-0.5, -0.5, 0}, UVY: 1, Color: mgl32.Vec4{1, 0, 0, 1}},
		{Position: mgl32.Vec3{-0.5, 0.5, 0}, UVX: 1, UVY: 1, Normal: mgl32.Vec3{0, 0, 1}, Color: mgl32.Vec4{0, 1, 0, 1}},
	}
	return []uint32{0, 1, 2, 2, 1, 3}, vertices
}

func TestVertexLayout(t *testing.T) {
	if VertexSize != 48 {
		t.Fatalf("VertexSize: got %d, want 48", VertexSize)
	}
}

func TestUploadMeshRoundTrip(t *testing.T) {
	dev, alloc, u := newUploader(t)
	indices, vertices := quad()

	mesh, err := u.UploadMesh(indices, vertices)
	if err != nil {
		t.Fatalf("UploadMesh: %v", err)
	}
	if mesh.VertexAddress == 0 {
		t.Fatalf("mesh has no vertex buffer address")
	}
	if mesh.IndexCount != 6 {
		t.Fatalf("index count: got %d, want 6", mesh.IndexCount)
	}
	// staging buffer is gone, only the two mesh buffers remain
	if live := alloc.Live(); len(live) != 2 {
		t.Fatalf("live allocations after upload: %d, want 2", len(live))
	}

	gotV, err := u.ReadBuffer(mesh.Vertices, 0, mesh.Vertices.Size)
	if err != nil {
		t.Fatalf("ReadBuffer vertices: %v", err)
	}
	if !bytes.Equal(gotV, VertexBytes(vertices)) {
		t.Fatalf("vertex readback differs from upload")
	}
	gotI, err := u.ReadBuffer(mesh.Indices, 0, mesh.Indices.Size)
	if err != nil {
		t.Fatalf("ReadBuffer indices: %v", err)
	}
	if !bytes.Equal(gotI, indexBytes(indices)) {
		t.Fatalf("index readback differs from upload")
	}

	if err := mesh.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if live := alloc.Live(); len(live) != 0 {
		t.Fatalf("live allocations after release: %d", len(live))
	}
	checkViolations(t, dev)
}

func TestUploadMeshRejectsEmpty(t *testing.T) {
	_, _, u := newUploader(t)
	if _, err := u.UploadMesh(nil, nil); err == nil {
		t.Fatalf("UploadMesh(nil, nil): expected error")
	}
}

func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i) ^ seed
	}
	return out
}

func TestUploadImage(t *testing.T) {
	dev, _, u := newUploader(t)
	extent := gpu.Extent3D{Width: 16, Height: 8, Depth: 1}
	pixels := pattern(16*8*4, 0x5a)

	img, err := u.UploadImage(pixels, extent, gpu.FormatR8G8B8A8Unorm, gpu.ImageUsageSampled, false)
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if got := dev.ImageLevel(img.Image, 0, 0); !bytes.Equal(got, pixels) {
		t.Fatalf("image contents differ from upload")
	}
	if got := dev.ImageLayout(img.Image, 0, 0); got != gpu.LayoutShaderReadOnly {
		t.Fatalf("layout: got %s, want shader_read_only", got)
	}
	checkViolations(t, dev)
}

func TestUploadImageMipmapped(t *testing.T) {
	dev, _, u := newUploader(t)
	extent := gpu.Extent3D{Width: 32, Height: 32, Depth: 1}
	img, err := u.UploadImage(pattern(32*32*4, 1), extent, gpu.FormatR8G8B8A8Unorm, gpu.ImageUsageSampled, true)
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if img.MipLevels != images.MipLevels(extent.To2D()) {
		t.Fatalf("mip levels: got %d, want %d", img.MipLevels, images.MipLevels(extent.To2D()))
	}
	for mip := uint32(0); mip < img.MipLevels; mip++ {
		if got := dev.ImageLayout(img.Image, 0, mip); got != gpu.LayoutShaderReadOnly {
			t.Fatalf("mip %d layout: got %s, want shader_read_only", mip, got)
		}
	}
	checkViolations(t, dev)
}

func TestUploadImageRejectsWrongSize(t *testing.T) {
	_, alloc, u := newUploader(t)
	_, err := u.UploadImage(make([]byte, 10), gpu.Extent3D{Width: 4, Height: 4}, gpu.FormatR8G8B8A8Unorm, gpu.ImageUsageSampled, false)
	if err == nil {
		t.Fatalf("UploadImage with short pixels: expected error")
	}
	if n := len(alloc.Live()); n != 0 {
		t.Fatalf("failed upload leaked %d allocations", n)
	}
}

func TestUploadCubemap(t *testing.T) {
	dev, _, u := newUploader(t)
	extent := gpu.Extent3D{Width: 8, Height: 8, Depth: 1}
	var faces [6][]byte
	for i := range faces {
		faces[i] = pattern(8*8*4, byte(i*40))
	}
	img, err := u.UploadCubemap(faces, extent, gpu.FormatR8G8B8A8Unorm, gpu.ImageUsageSampled, true)
	if err != nil {
		t.Fatalf("UploadCubemap: %v", err)
	}
	if img.Layers != 6 {
		t.Fatalf("layers: got %d, want 6", img.Layers)
	}
	for face := uint32(0); face < 6; face++ {
		if got := dev.ImageLevel(img.Image, face, 0); !bytes.Equal(got, faces[face]) {
			t.Fatalf("face %d contents differ from upload", face)
		}
		for mip := uint32(0); mip < img.MipLevels; mip++ {
			if got := dev.ImageLayout(img.Image, face, mip); got != gpu.LayoutShaderReadOnly {
				t.Fatalf("face %d mip %d layout: %s", face, mip, got)
			}
		}
	}
	checkViolations(t, dev)
}

func TestUploadCubemapHalfFloat(t *testing.T) {
	dev, alloc, u := newUploader(t)
	extent := gpu.Extent3D{Width: 4, Height: 4, Depth: 1}
	format := gpu.FormatR16G16B16A16Sfloat

	var narrow [6][]byte
	for i := range narrow {
		narrow[i] = pattern(4*4*4, byte(i))
	}
	if _, err := u.UploadCubemap(narrow, extent, format, gpu.ImageUsageSampled, true); err == nil {
		t.Fatalf("UploadCubemap with 8 bit faces: expected error")
	}
	if n := len(alloc.Live()); n != 0 {
		t.Fatalf("rejected upload left %d allocations", n)
	}

	var faces [6][]byte
	for i := range faces {
		faces[i] = pattern(4*4*8, byte(i*30))
	}
	img, err := u.UploadCubemap(faces, extent, format, gpu.ImageUsageSampled, true)
	if err != nil {
		t.Fatalf("UploadCubemap: %v", err)
	}
	if img.Format != format || img.Layers != 6 || img.MipLevels != 3 {
		t.Fatalf("got format %v layers %d mips %d", img.Format, img.Layers, img.MipLevels)
	}
	for face := uint32(0); face < 6; face++ {
		if got := dev.ImageLevel(img.Image, face, 0); !bytes.Equal(got, faces[face]) {
			t.Fatalf("face %d contents differ from upload", face)
		}
	}
	checkViolations(t, dev)
}

func TestImmediateSubmitOrdering(t *testing.T) {
	dev := gputest.New()
	imm, err := NewImmediateSubmitter(dev, time.Second)
	if err != nil {
		t.Fatalf("NewImmediateSubmitter: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := imm.Submit(func(gpu.CommandBuffer) {}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	var kinds []gputest.EventKind
	for _, e := range dev.EventsOf(gputest.EventFenceReset, gputest.EventCommandReset, gputest.EventSubmit, gputest.EventFenceWait) {
		kinds = append(kinds, e.Kind)
	}
	want := []gputest.EventKind{
		gputest.EventFenceReset, gputest.EventCommandReset, gputest.EventSubmit, gputest.EventFenceWait,
		gputest.EventFenceReset, gputest.EventCommandReset, gputest.EventSubmit, gputest.EventFenceWait,
	}
	if len(kinds) != len(want) {
		t.Fatalf("events: got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
	checkViolations(t, dev)

	imm.Destroy()
	if n := dev.LiveCount(); n != 0 {
		t.Fatalf("%d objects alive after Destroy", n)
	}
}

func TestImmediateSubmitRejectsReentry(t *testing.T) {
	dev := gputest.New()
	imm, err := NewImmediateSubmitter(dev, time.Second)
	if err != nil {
		t.Fatalf("NewImmediateSubmitter: %v", err)
	}
	var inner error
	if err := imm.Submit(func(gpu.CommandBuffer) {
		inner = imm.Submit(func(gpu.CommandBuffer) {})
	}); err != nil {
		t.Fatalf("outer Submit: %v", err)
	}
	if !errors.Is(inner, core.ErrReentrantSubmit) {
		t.Fatalf("inner Submit: got %v, want ErrReentrantSubmit", inner)
	}
	// usable again afterwards
	if err := imm.Submit(func(gpu.CommandBuffer) {}); err != nil {
		t.Fatalf("Submit after reentry: %v", err)
	}
}
