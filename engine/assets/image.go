package assets

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/lantern/engine/core"
)

// Image is a decoded picture as tightly packed RGBA rows: 8 bit channels,
// or half float channels when HDR is set.
type Image struct {
	Width  uint32
	Height uint32
	Pixels []byte
	HDR    bool
}

func fromRGBA(src image.Image) *Image {
	b := src.Bounds()
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}
	return &Image{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: rgba.Pix,
	}
}

// DecodeImage reads any registered image format from path. Files ending
// in .hdr go through DecodeHDR.
func DecodeImage(path string) (*Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".hdr") {
		return DecodeHDR(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	core.LogDebug("decoded %s image %s (%dx%d)", format, path, img.Bounds().Dx(), img.Bounds().Dy())
	return fromRGBA(img), nil
}

// LoadImage is DecodeImage that logs failures and returns nil instead.
// Callers substitute Checkerboard.
func LoadImage(path string) *Image {
	img, err := DecodeImage(path)
	if err != nil {
		core.LogError("failed to load texture at %s: %v", path, err)
		return nil
	}
	return img
}

// LoadCubemap decodes six faces in +X, -X, +Y, -Y, +Z, -Z order. All faces
// must share one size, and either all or none of them are HDR.
func LoadCubemap(paths [6]string) ([6]*Image, error) {
	var faces [6]*Image
	var g errgroup.Group
	for i, p := range paths {
		g.Go(func() error {
			img, err := DecodeImage(p)
			if err != nil {
				return fmt.Errorf("cubemap face %d: %w", i, err)
			}
			faces[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [6]*Image{}, err
	}
	for i, f := range faces[1:] {
		if f.Width != faces[0].Width || f.Height != faces[0].Height {
			return [6]*Image{}, fmt.Errorf("cubemap face %d is %dx%d, face 0 is %dx%d", i+1, f.Width, f.Height, faces[0].Width, faces[0].Height)
		}
		if f.HDR != faces[0].HDR {
			return [6]*Image{}, fmt.Errorf("cubemap face %d mixes HDR and 8 bit faces", i+1)
		}
	}
	return faces, nil
}

const (
	magenta = 0xFF00FFFF
	black   = 0x000000FF
)

// Checkerboard is the placeholder for textures that failed to load:
// alternating magenta and black pixels.
func Checkerboard(size uint32) *Image {
	img := &Image{Width: size, Height: size, Pixels: make([]byte, size*size*4)}
	for y := uint32(0); y < size; y++ {
		for x := uint32(0); x < size; x++ {
			c := uint32(black)
			if (x%2)^(y%2) == 1 {
				c = magenta
			}
			o := (y*size + x) * 4
			img.Pixels[o] = byte(c >> 24)
			img.Pixels[o+1] = byte(c >> 16)
			img.Pixels[o+2] = byte(c >> 8)
			img.Pixels[o+3] = byte(c)
		}
	}
	return img
}

// Solid is a 1x1 image of one RGBA color, used for default textures.
func Solid(r, g, b, a byte) *Image {
	return &Image{Width: 1, Height: 1, Pixels: []byte{r, g, b, a}}
}
