package assets

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	gomath "math"
	"os"
	"strings"

	"github.com/spaghettifunk/lantern/engine/core"
)

const (
	// bytes per pixel of half float RGBA
	hdrPixelSize = 8
	// scanlines outside this width range are never run length encoded
	rleMinWidth = 8
	rleMaxWidth = 0x7fff
)

var errNotRadiance = errors.New("not a Radiance HDR file")

// DecodeHDR reads a Radiance RGBE picture (.hdr) from path into half
// float RGBA with alpha 1.
func DecodeHDR(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := decodeHDR(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	core.LogDebug("decoded hdr image %s (%dx%d)", path, img.Width, img.Height)
	return img, nil
}

func decodeHDR(r *bufio.Reader) (*Image, error) {
	width, height, err := readHDRHeader(r)
	if err != nil {
		return nil, err
	}
	img := &Image{
		Width:  width,
		Height: height,
		Pixels: make([]byte, int(width)*int(height)*hdrPixelSize),
		HDR:    true,
	}
	scanline := make([]byte, width*4)
	for y := uint32(0); y < height; y++ {
		if err := readScanline(r, scanline); err != nil {
			return nil, fmt.Errorf("scanline %d: %w", y, err)
		}
		row := img.Pixels[int(y)*int(width)*hdrPixelSize:]
		for x := uint32(0); x < width; x++ {
			rgbeToHalf(row[x*hdrPixelSize:], scanline[x*4:x*4+4])
		}
	}
	return img, nil
}

// readHDRHeader consumes the header and the resolution line. Only the
// standard top-down, left-to-right orientation is accepted.
func readHDRHeader(r *bufio.Reader) (uint32, uint32, error) {
	magic, err := r.ReadString('\n')
	if err != nil {
		return 0, 0, errNotRadiance
	}
	if !strings.HasPrefix(magic, "#?") {
		return 0, 0, errNotRadiance
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return 0, 0, fmt.Errorf("header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if format, ok := strings.CutPrefix(line, "FORMAT="); ok && format != "32-bit_rle_rgbe" {
			return 0, 0, fmt.Errorf("unsupported pixel format %s", format)
		}
	}
	res, err := r.ReadString('\n')
	if err != nil {
		return 0, 0, fmt.Errorf("resolution: %w", err)
	}
	var width, height uint32
	if _, err := fmt.Sscanf(res, "-Y %d +X %d", &height, &width); err != nil {
		return 0, 0, fmt.Errorf("unsupported resolution line %q", strings.TrimSpace(res))
	}
	if width == 0 || height == 0 {
		return 0, 0, fmt.Errorf("empty image %dx%d", width, height)
	}
	return width, height, nil
}

// readScanline fills dst with width RGBE pixels, run length encoded per
// channel or stored flat.
func readScanline(r io.Reader, dst []byte) error {
	width := len(dst) / 4
	if _, err := io.ReadFull(r, dst[:4]); err != nil {
		return err
	}
	rle := width >= rleMinWidth && width <= rleMaxWidth &&
		dst[0] == 2 && dst[1] == 2 && int(dst[2])<<8|int(dst[3]) == width
	if !rle {
		_, err := io.ReadFull(r, dst[4:])
		return err
	}

	channel := make([]byte, width)
	var b [2]byte
	for c := 0; c < 4; c++ {
		for x := 0; x < width; {
			if _, err := io.ReadFull(r, b[:1]); err != nil {
				return err
			}
			count := int(b[0])
			if count > 128 {
				count -= 128
				if x+count > width {
					return fmt.Errorf("run of %d past width %d", count, width)
				}
				if _, err := io.ReadFull(r, b[1:2]); err != nil {
					return err
				}
				for i := 0; i < count; i++ {
					channel[x+i] = b[1]
				}
			} else {
				if count == 0 || x+count > width {
					return fmt.Errorf("literal of %d at %d, width %d", count, x, width)
				}
				if _, err := io.ReadFull(r, channel[x:x+count]); err != nil {
					return err
				}
			}
			x += count
		}
		for x := 0; x < width; x++ {
			dst[x*4+c] = channel[x]
		}
	}
	return nil
}

func rgbeToHalf(dst, rgbe []byte) {
	var rgb [3]float32
	if e := rgbe[3]; e != 0 {
		scale := float32(gomath.Ldexp(1, int(e)-(128+8)))
		for i := range rgb {
			rgb[i] = float32(rgbe[i]) * scale
		}
	}
	for i, v := range rgb {
		binary.LittleEndian.PutUint16(dst[i*2:], floatToHalf(v))
	}
	binary.LittleEndian.PutUint16(dst[6:], floatToHalf(1))
}

// floatToHalf truncates to IEEE 754 binary16. Values past the half range
// become infinity.
func floatToHalf(f float32) uint16 {
	bits := gomath.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15
	mant := bits & 0x7fffff
	switch {
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		return sign | uint16(mant>>uint32(14-exp))
	}
	return sign | uint16(exp)<<10 | uint16(mant>>13)
}
