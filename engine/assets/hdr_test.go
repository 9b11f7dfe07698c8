package assets

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// 1.0, 0.5, 0.25 in RGBE
var unitRGBE = []byte{128, 64, 32, 129}

func writeHDR(t *testing.T, name, resolution string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	data := append([]byte("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n"+resolution+"\n"), body...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func halfAt(img *Image, pixel, channel int) uint16 {
	return binary.LittleEndian.Uint16(img.Pixels[pixel*hdrPixelSize+channel*2:])
}

func TestDecodeHDRRunLength(t *testing.T) {
	// one scanline of eight equal pixels, every channel a single run
	body := []byte{2, 2, 0, 8}
	for _, v := range unitRGBE {
		body = append(body, 128+8, v)
	}
	img, err := DecodeImage(writeHDR(t, "sky.hdr", "-Y 1 +X 8", body))
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if !img.HDR || img.Width != 8 || img.Height != 1 || len(img.Pixels) != 8*hdrPixelSize {
		t.Fatalf("got %dx%d hdr=%v with %d bytes", img.Width, img.Height, img.HDR, len(img.Pixels))
	}
	want := []uint16{0x3c00, 0x3800, 0x3400, 0x3c00}
	for p := 0; p < 8; p++ {
		for c, w := range want {
			if got := halfAt(img, p, c); got != w {
				t.Fatalf("pixel %d channel %d: got %#x, want %#x", p, c, got, w)
			}
		}
	}
}

func TestDecodeHDRFlat(t *testing.T) {
	body := append(append([]byte{}, unitRGBE...), 0, 0, 0, 0)
	img, err := DecodeHDR(writeHDR(t, "flat.hdr", "-Y 1 +X 2", body))
	if err != nil {
		t.Fatalf("DecodeHDR: %v", err)
	}
	if got := halfAt(img, 0, 1); got != 0x3800 {
		t.Fatalf("pixel 0 green: got %#x, want 0x3800", got)
	}
	if got := halfAt(img, 1, 0); got != 0 {
		t.Fatalf("pixel 1 red: got %#x, want 0", got)
	}
	if got := halfAt(img, 1, 3); got != 0x3c00 {
		t.Fatalf("pixel 1 alpha: got %#x, want 0x3c00", got)
	}
}

func TestDecodeHDRRejects(t *testing.T) {
	tests := map[string][]byte{
		"bad magic":   []byte("P6\n1 1\n255\n"),
		"orientation": []byte("#?RADIANCE\n\n+Y 1 +X 1\n\x80\x40\x20\x81"),
		"truncated":   []byte("#?RADIANCE\n\n-Y 2 +X 1\n\x80\x40\x20\x81"),
		"xyze":        []byte("#?RADIANCE\nFORMAT=32-bit_rle_xyze\n\n-Y 1 +X 1\n\x80\x40\x20\x81"),
	}
	for name, data := range tests {
		path := filepath.Join(t.TempDir(), "x.hdr")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := DecodeHDR(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestFloatToHalf(t *testing.T) {
	tests := []struct {
		in   float32
		want uint16
	}{
		{0, 0},
		{1, 0x3c00},
		{-2, 0xc000},
		{0.5, 0x3800},
		{65504, 0x7bff},
		{1e6, 0x7c00},
		{0x1p-15, 0x0200},
		{0x1p-30, 0},
	}
	for _, tt := range tests {
		if got := floatToHalf(tt.in); got != tt.want {
			t.Fatalf("floatToHalf(%v): got %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestLoadCubemapRejectsMixedHDR(t *testing.T) {
	dir := t.TempDir()
	var paths [6]string
	for i := range paths {
		paths[i] = filepath.Join(dir, string(rune('a'+i))+".png")
		writeImage(t, paths[i], gradient(1, 1, 0))
	}
	hdr := writeHDR(t, "face.hdr", "-Y 1 +X 1", unitRGBE)
	paths[5] = hdr
	if _, err := LoadCubemap(paths); err == nil {
		t.Fatalf("LoadCubemap with mixed faces: expected error")
	}

	for i := range paths {
		paths[i] = hdr
	}
	faces, err := LoadCubemap(paths)
	if err != nil {
		t.Fatalf("LoadCubemap: %v", err)
	}
	if !faces[0].HDR || !bytes.Equal(faces[0].Pixels, faces[5].Pixels) {
		t.Fatalf("got hdr=%v, faces differ", faces[0].HDR)
	}
}
