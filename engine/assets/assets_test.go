package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	switch filepath.Ext(path) {
	case ".png":
		err = png.Encode(f, img)
	case ".bmp":
		err = bmp.Encode(f, img)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func gradient(w, h int, seed uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: seed, A: 255})
		}
	}
	return img
}

func TestDecodeImageFormats(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "a.bmp"} {
		path := filepath.Join(dir, name)
		writeImage(t, path, gradient(4, 3, 7))

		img, err := DecodeImage(path)
		if err != nil {
			t.Fatalf("DecodeImage(%s): %v", name, err)
		}
		if img.Width != 4 || img.Height != 3 {
			t.Fatalf("%s: got %dx%d, want 4x3", name, img.Width, img.Height)
		}
		if len(img.Pixels) != 4*3*4 {
			t.Fatalf("%s: got %d bytes, want %d", name, len(img.Pixels), 4*3*4)
		}
		// pixel (2, 1)
		o := (1*4 + 2) * 4
		if got, want := img.Pixels[o:o+4], []byte{32, 16, 7, 255}; !bytes.Equal(got, want) {
			t.Fatalf("%s pixel (2,1): got %v, want %v", name, got, want)
		}
	}
}

func TestLoadImageMissingReturnsNil(t *testing.T) {
	if img := LoadImage(filepath.Join(t.TempDir(), "missing.png")); img != nil {
		t.Fatalf("got %v, want nil", img)
	}
}

func TestLoadCubemap(t *testing.T) {
	dir := t.TempDir()
	var paths [6]string
	for i := range paths {
		paths[i] = filepath.Join(dir, string(rune('a'+i))+".png")
		writeImage(t, paths[i], gradient(2, 2, uint8(i)))
	}
	faces, err := LoadCubemap(paths)
	if err != nil {
		t.Fatalf("LoadCubemap: %v", err)
	}
	for i, f := range faces {
		if f.Pixels[2] != uint8(i) {
			t.Fatalf("face %d out of order: blue channel %d", i, f.Pixels[2])
		}
	}

	writeImage(t, paths[3], gradient(4, 4, 0))
	if _, err := LoadCubemap(paths); err == nil {
		t.Fatalf("LoadCubemap with mismatched faces: expected error")
	}
}

func TestCheckerboard(t *testing.T) {
	img := Checkerboard(16)
	if img.Width != 16 || img.Height != 16 || len(img.Pixels) != 16*16*4 {
		t.Fatalf("got %dx%d with %d bytes", img.Width, img.Height, len(img.Pixels))
	}
	if got := img.Pixels[0:4]; !bytes.Equal(got, []byte{0, 0, 0, 255}) {
		t.Fatalf("pixel (0,0): got %v, want black", got)
	}
	if got := img.Pixels[4:8]; !bytes.Equal(got, []byte{255, 0, 255, 255}) {
		t.Fatalf("pixel (1,0): got %v, want magenta", got)
	}
}

func TestLoadShader(t *testing.T) {
	dir := t.TempDir()
	good := []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}
	if err := os.WriteFile(filepath.Join(dir, "ok.spv"), good, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.spv"), []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadShader(dir, "ok"); err != nil {
		t.Fatalf("LoadShader(ok): %v", err)
	}
	if _, err := LoadShader(dir, "bad"); err == nil {
		t.Fatalf("LoadShader(bad): expected error")
	}
	if _, err := LoadShader(dir, "missing"); err == nil {
		t.Fatalf("LoadShader(missing): expected error")
	}
}

func TestSphere(t *testing.T) {
	vertices, indices := Sphere(2, 8, 16)
	if got, want := len(vertices), 9*17; got != want {
		t.Fatalf("vertices: got %d, want %d", got, want)
	}
	if got, want := len(indices), 8*16*6; got != want {
		t.Fatalf("indices: got %d, want %d", got, want)
	}
	for _, i := range indices {
		if int(i) >= len(vertices) {
			t.Fatalf("index %d out of range", i)
		}
	}
	for i, v := range vertices {
		if l := v.Position.Len(); l < 1.999 || l > 2.001 {
			t.Fatalf("vertex %d at distance %f, want 2", i, l)
		}
	}
}

func TestCube(t *testing.T) {
	vertices, indices := Cube()
	if len(vertices) != 24 || len(indices) != 36 {
		t.Fatalf("got %d vertices %d indices, want 24 and 36", len(vertices), len(indices))
	}
	// every triangle winds counter clockwise seen from outside
	for i := 0; i < len(indices); i += 3 {
		a, b, c := vertices[indices[i]], vertices[indices[i+1]], vertices[indices[i+2]]
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		if n.Dot(a.Normal) <= 0 {
			t.Fatalf("triangle %d faces inward", i/3)
		}
	}
}
