package pixel

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

var ErrInvalidSize = errors.New("invalid image size")

// RGBA is a non-premultiplied 8-bit color, alpha last.
type RGBA struct {
	R, G, B, A uint8
}

// Packed returns the color as one 32-bit word with R in the least
// significant byte and A in the most significant one.
func (c RGBA) Packed() uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16 | uint32(c.A)<<24
}

func Unpack(v uint32) RGBA {
	return RGBA{
		R: uint8(v),
		G: uint8(v >> 8),
		B: uint8(v >> 16),
		A: uint8(v >> 24),
	}
}

// Hex renders the color as #rrggbbaa.
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (c RGBA) RGBA() (uint32, uint32, uint32, uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// Buffer is a rectangular grid of RGBA pixels stored row-major, four bytes
// per pixel.
//
// A Buffer is owned by a single mutator at a time.
type Buffer struct {
	Width  int
	Height int
	// Pix holds the pixels. The pixel at (x, y) starts at Pix[(y*Width+x)*4].
	Pix []uint8
}

var _ draw.Image = &Buffer{}

func New(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}, nil
}

// Len returns the number of pixels.
func (b *Buffer) Len() int {
	return b.Width * b.Height
}

func (b *Buffer) PixelAt(i int) RGBA {
	p := b.Pix[i*4 : i*4+4 : i*4+4]
	return RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

func (b *Buffer) SetPixelAt(i int, c RGBA) {
	p := b.Pix[i*4 : i*4+4 : i*4+4]
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}

func (b *Buffer) RGBAAt(x, y int) RGBA {
	return b.PixelAt(y*b.Width + x)
}

func (b *Buffer) SetRGBA(x, y int, c RGBA) {
	b.SetPixelAt(y*b.Width+x, c)
}

func (b *Buffer) ColorModel() color.Model {
	return color.NRGBAModel
}

func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

func (b *Buffer) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(b.Bounds())) {
		return color.NRGBA{}
	}
	c := b.RGBAAt(x, y)
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func (b *Buffer) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(b.Bounds())) {
		return
	}
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	b.SetRGBA(x, y, RGBA{R: nc.R, G: nc.G, B: nc.B, A: nc.A})
}

func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		Width:  b.Width,
		Height: b.Height,
		Pix:    append([]uint8(nil), b.Pix...),
	}
}

// Image returns a copy of the buffer as a standard library image.
func (b *Buffer) Image() *image.NRGBA {
	img := image.NewNRGBA(b.Bounds())
	copy(img.Pix, b.Pix)
	return img
}

// FromImage copies any image into a new buffer, the top-left corner of the
// image bounds becoming (0, 0).
func FromImage(img image.Image) (*Buffer, error) {
	sr := img.Bounds()
	buf, err := New(sr.Dx(), sr.Dy())
	if err != nil {
		return nil, err
	}

	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Stride == sr.Dx()*4 {
		copy(buf.Pix, nrgba.Pix[nrgba.PixOffset(sr.Min.X, sr.Min.Y):])
		return buf, nil
	}

	draw.Draw(buf, buf.Bounds(), img, sr.Min, draw.Src)
	return buf, nil
}
