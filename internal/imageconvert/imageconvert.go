// If you are AI: This file implements the jpeg<->raw image converter (A6),
// grounded on grimageconverter.cpp's Gr::ImageConverter: toRaw/toJpeg with
// an integer scale factor and an optional monochrome flag, restricted to
// the jpeg and raw formats the fan-out (C7) and preview surfaces exchange.

package imageconvert

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"videopipe/internal/codec/imagetype"
)

// defaultJPEGQuality mirrors the teacher's fixed encoder quality; spec.md
// §6's Image converter contract has no quality parameter of its own.
const defaultJPEGQuality = 85

// Image pairs a type descriptor with its encoded or raw bytes, the same
// shape channel.Message carries a frame's payload in.
type Image struct {
	Type imagetype.Type
	Data []byte
}

// Converter converts between jpeg and raw image representations, scaling
// and optionally desaturating along the way. It holds no state; the
// teacher's Gr::ImageConverter keeps scratch buffers, but nothing here is
// hot enough to warrant reuse across calls.
type Converter struct{}

// New creates a Converter.
func New() *Converter { return &Converter{} }

// Convertible reports whether t's format is one ToRaw/ToJpeg accept.
func Convertible(t imagetype.Type) bool {
	return t.Format == imagetype.JPEG || t.Format == imagetype.Raw
}

// ToRaw converts in (jpeg or raw) to a raw image, applying scale (1 means
// no scaling; n means every nth pixel in each dimension) and an optional
// monochrome conversion.
func (c *Converter) ToRaw(in Image, scale int, monochrome bool) (Image, error) {
	img, err := c.decode(in)
	if err != nil {
		return Image{}, fmt.Errorf("imageconvert: decode: %w", err)
	}
	img = scaleImage(img, scale)
	data, typ := encodeRaw(img, monochrome)
	return Image{Type: typ, Data: data}, nil
}

// ToJpeg converts in (jpeg or raw) to a jpeg image, applying scale and an
// optional monochrome conversion.
func (c *Converter) ToJpeg(in Image, scale int, monochrome bool) (Image, error) {
	img, err := c.decode(in)
	if err != nil {
		return Image{}, fmt.Errorf("imageconvert: decode: %w", err)
	}
	img = scaleImage(img, scale)
	if monochrome {
		img = toGray(img)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: defaultJPEGQuality}); err != nil {
		return Image{}, fmt.Errorf("imageconvert: encode jpeg: %w", err)
	}
	bounds := img.Bounds()
	channels := 3
	if _, ok := img.(*image.Gray); ok {
		channels = 1
	}
	typ := imagetype.Type{Format: imagetype.JPEG, DX: bounds.Dx(), DY: bounds.Dy(), Channels: channels}
	return Image{Type: typ, Data: buf.Bytes()}, nil
}

// decode turns in into a stdlib image.Image, dispatching on its declared
// format.
func (c *Converter) decode(in Image) (image.Image, error) {
	switch in.Type.Format {
	case imagetype.JPEG:
		return jpeg.Decode(bytes.NewReader(in.Data))
	case imagetype.Raw:
		return decodeRaw(in.Data, in.Type)
	default:
		return nil, fmt.Errorf("imageconvert: format %q is not convertible", in.Type.Format)
	}
}

// decodeRaw reinterprets a tightly packed row-major buffer (no stride
// padding) as an image.Image, per t's declared dimensions and channel
// count.
func decodeRaw(data []byte, t imagetype.Type) (image.Image, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("imageconvert: invalid raw image type %+v", t)
	}
	if len(data) < t.Size() {
		return nil, fmt.Errorf("imageconvert: raw buffer too small: have %d, want %d", len(data), t.Size())
	}
	rect := image.Rect(0, 0, t.DX, t.DY)
	switch t.Channels {
	case 1:
		return &image.Gray{Pix: data[:t.Size()], Stride: t.DX, Rect: rect}, nil
	case 3:
		rgba := image.NewRGBA(rect)
		for y := 0; y < t.DY; y++ {
			src := data[y*t.RowSize() : (y+1)*t.RowSize()]
			for x := 0; x < t.DX; x++ {
				i := rgba.PixOffset(x, y)
				rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2], rgba.Pix[i+3] = src[x*3], src[x*3+1], src[x*3+2], 0xff
			}
		}
		return rgba, nil
	default:
		return nil, fmt.Errorf("imageconvert: unsupported channel count %d", t.Channels)
	}
}

// encodeRaw packs img into a tightly packed row-major buffer, dropping
// alpha and any stride padding, and converting to single-channel if
// monochrome is requested.
func encodeRaw(img image.Image, monochrome bool) ([]byte, imagetype.Type) {
	bounds := img.Bounds()
	dx, dy := bounds.Dx(), bounds.Dy()

	if monochrome {
		data := make([]byte, dx*dy)
		for y := 0; y < dy; y++ {
			for x := 0; x < dx; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				data[y*dx+x] = grayByte(r, g, b)
			}
		}
		return data, imagetype.Type{Format: imagetype.Raw, DX: dx, DY: dy, Channels: 1}
	}

	data := make([]byte, dx*dy*3)
	for y := 0; y < dy; y++ {
		for x := 0; x < dx; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*dx + x) * 3
			data[i], data[i+1], data[i+2] = byte(r>>8), byte(g>>8), byte(b>>8)
		}
	}
	return data, imagetype.Type{Format: imagetype.Raw, DX: dx, DY: dy, Channels: 3}
}

// scaleImage downsamples img by taking every scale'th pixel in each
// dimension, matching the teacher's integer scale parameter (1 is a
// no-op). Upscaling (scale<=0) is rejected by callers validating input;
// here it is simply treated as 1.
func scaleImage(img image.Image, scale int) image.Image {
	if scale <= 1 {
		return img
	}
	bounds := img.Bounds()
	dx, dy := bounds.Dx()/scale, bounds.Dy()/scale
	if dx < 1 {
		dx = 1
	}
	if dy < 1 {
		dy = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, dx, dy))
	for y := 0; y < dy; y++ {
		for x := 0; x < dx; x++ {
			out.Set(x, y, img.At(bounds.Min.X+x*scale, bounds.Min.Y+y*scale))
		}
	}
	return out
}

// toGray desaturates img.
func toGray(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// grayByte converts a 16-bit-scaled RGB triple to one 8-bit luma value.
func grayByte(r, g, b uint32) byte {
	// ITU-R 601 luma weights, applied to 16-bit-scaled RGBA channels.
	y := (299*r + 587*g + 114*b) / 1000
	return byte(y >> 8)
}
