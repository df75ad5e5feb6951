package deck

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// renderPayload converts an arbitrary source image into the raw payload
// the descriptor expects: scale to the per-key dimensions, apply the
// declared orientation transform, encode into the declared container.
// Fixed-size formats are checked against the declared payload length;
// the result is never truncated or padded to fit.
func renderPayload(d *Descriptor, src image.Image) ([]byte, error) {
	if d.Format == FormatNone {
		return nil, fmt.Errorf("%w: model has no key displays", ErrUnsupportedImageFormat)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil image", ErrEncoding)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, d.KeyWidth, d.KeyHeight))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)

	oriented := orient(scaled, d.Rotation, d.FlipX, d.FlipY)

	var buf bytes.Buffer
	var err error
	switch d.Format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, oriented, &jpeg.Options{Quality: 95})
	case FormatBMP:
		err = bmp.Encode(&buf, oriented)
	case FormatRGB565:
		err = encodeRGB565(&buf, oriented)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImageFormat, d.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	if d.PayloadLen > 0 && buf.Len() != d.PayloadLen {
		return nil, fmt.Errorf("%w: encoded %d bytes, descriptor declares %d",
			ErrEncoding, buf.Len(), d.PayloadLen)
	}
	return buf.Bytes(), nil
}

func orient(img image.Image, rot Rotation, flipX, flipY bool) image.Image {
	switch rot {
	case Rot90:
		img = rot90{img}
	case Rot180:
		img = rot180{img}
	case Rot270:
		img = rot270{img}
	}
	if flipX {
		img = mirrorX{img}
	}
	if flipY {
		img = mirrorY{img}
	}
	return img
}

// Orientation wrappers remap At lookups instead of copying pixels.

type rot90 struct{ image.Image }

func (i rot90) Bounds() image.Rectangle {
	b := i.Image.Bounds()
	return image.Rect(0, 0, b.Dy(), b.Dx())
}

func (i rot90) At(x, y int) color.Color {
	b := i.Image.Bounds()
	return i.Image.At(b.Min.X+y, b.Min.Y+b.Dy()-1-x)
}

type rot180 struct{ image.Image }

func (i rot180) At(x, y int) color.Color {
	b := i.Image.Bounds()
	return i.Image.At(2*b.Min.X+b.Dx()-1-x, 2*b.Min.Y+b.Dy()-1-y)
}

type rot270 struct{ image.Image }

func (i rot270) Bounds() image.Rectangle {
	b := i.Image.Bounds()
	return image.Rect(0, 0, b.Dy(), b.Dx())
}

func (i rot270) At(x, y int) color.Color {
	b := i.Image.Bounds()
	return i.Image.At(b.Min.X+b.Dx()-1-y, b.Min.Y+x)
}

type mirrorX struct{ image.Image }

func (i mirrorX) At(x, y int) color.Color {
	b := i.Image.Bounds()
	return i.Image.At(2*b.Min.X+b.Dx()-1-x, y)
}

type mirrorY struct{ image.Image }

func (i mirrorY) At(x, y int) color.Color {
	b := i.Image.Bounds()
	return i.Image.At(x, 2*b.Min.Y+b.Dy()-1-y)
}

// encodeRGB565 writes raw little-endian RGB565 pixels, row-major from the
// top-left corner.
func encodeRGB565(buf *bytes.Buffer, img image.Image) error {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			px := uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(bl>>11)
			buf.WriteByte(byte(px))
			buf.WriteByte(byte(px >> 8))
		}
	}
	return nil
}
