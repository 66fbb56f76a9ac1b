package pixel

import (
	"fmt"
	"image"
)

// Crop returns the pixels of b inside r as a new buffer.
func Crop(b *Buffer, r image.Rectangle) (*Buffer, error) {
	if !r.In(b.Bounds()) {
		return nil, fmt.Errorf("%w: crop %v outside %v", ErrInvalidSize, r, b.Bounds())
	}

	dest, err := New(r.Dx(), r.Dy())
	if err != nil {
		return nil, err
	}

	rowLen := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		src := ((r.Min.Y+y)*b.Width + r.Min.X) * 4
		copy(dest.Pix[y*rowLen:(y+1)*rowLen], b.Pix[src:src+rowLen])
	}
	return dest, nil
}

// Downscale resizes b down to width x height by sampling the source pixel at
// the floor of the scaled coordinates, so no color absent from b is
// introduced.
func Downscale(b *Buffer, width, height int) (*Buffer, error) {
	if width > b.Width || height > b.Height {
		return nil, fmt.Errorf("%w: cannot downscale %dx%d to %dx%d", ErrInvalidSize, b.Width, b.Height, width, height)
	}
	if width == b.Width && height == b.Height {
		return b.Clone(), nil
	}

	dest, err := New(width, height)
	if err != nil {
		return nil, err
	}

	sx := float64(b.Width) / float64(width)
	sy := float64(b.Height) / float64(height)
	for y := 0; y < height; y++ {
		srcY := int(float64(y) * sy)
		for x := 0; x < width; x++ {
			dest.SetRGBA(x, y, b.RGBAAt(int(float64(x)*sx), srcY))
		}
	}
	return dest, nil
}

// Invert replaces every color channel by its complement, keeping alpha.
func Invert(b *Buffer) {
	for i := 0; i < len(b.Pix); i += 4 {
		b.Pix[i] = 255 - b.Pix[i]
		b.Pix[i+1] = 255 - b.Pix[i+1]
		b.Pix[i+2] = 255 - b.Pix[i+2]
	}
}
