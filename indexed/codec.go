/*
Package indexed encodes quantized images in the indexed binary format.

	offset      size  field
	0           27    magic tag "RAMI'S INDEXED IMAGE FORMAT"
	27          1     escape byte 0x1B
	28          1     palette color count N
	29          3     padding, written as zero
	32          4     image width W
	36          4     image height H
	40          4N    palette, one packed RGBA word per color (R least significant)
	40+4N       4N    histogram, one count per color
	40+8N       W*H   palette index of every pixel, row-major

All multi-byte fields are little-endian. The total size is 40 + 8N + W*H.
*/
package indexed

import (
	"encoding/binary"
	"errors"
	"fmt"

	"picquant/pixel"
	"picquant/quantize"
)

const (
	Magic      = "RAMI'S INDEXED IMAGE FORMAT"
	Escape     = 0x1B
	HeaderSize = 40

	// MaxColors is the largest palette the one byte color count can describe.
	MaxColors = 255
)

var (
	ErrColorOutOfPalette = errors.New("color out of palette")
	ErrPaletteTooLarge   = errors.New("palette too large")
	ErrInvalidReport     = errors.New("invalid report")
	ErrInvalidFormat     = errors.New("invalid indexed image format")
	ErrTruncated         = errors.New("truncated indexed image")
)

// Size returns the encoded size of a w x h image with n palette colors.
func Size(n, w, h int) int {
	return HeaderSize + 8*n + w*h
}

// Encode serializes buf and its palette. Every pixel of buf must hold one of
// the palette colors verbatim, which is the case right after quantization.
func Encode(buf *pixel.Buffer, report quantize.Report) ([]byte, error) {
	n := len(report.Palette)
	if n > MaxColors {
		return nil, fmt.Errorf("%w: %d colors, at most %d can be stored", ErrPaletteTooLarge, n, MaxColors)
	}
	if len(report.Histogram) != n {
		return nil, fmt.Errorf("%w: %d palette colors but %d histogram entries", ErrInvalidReport, n, len(report.Histogram))
	}

	data := make([]byte, Size(n, buf.Width, buf.Height))
	copy(data, Magic)
	data[27] = Escape
	data[28] = uint8(n)
	binary.LittleEndian.PutUint32(data[32:], uint32(buf.Width))
	binary.LittleEndian.PutUint32(data[36:], uint32(buf.Height))

	lookup := make(map[uint32]uint8, n)
	colors := data[HeaderSize : HeaderSize+4*n]
	histogram := data[HeaderSize+4*n : HeaderSize+8*n]
	for i, c := range report.Palette {
		packed := c.Packed()
		binary.LittleEndian.PutUint32(colors[i*4:], packed)
		if _, ok := lookup[packed]; !ok {
			lookup[packed] = uint8(i)
		}

		if report.Histogram[i] < 0 {
			return nil, fmt.Errorf("%w: negative histogram count %d for color %d", ErrInvalidReport, report.Histogram[i], i)
		}
		binary.LittleEndian.PutUint32(histogram[i*4:], uint32(report.Histogram[i]))
	}

	indexes := data[HeaderSize+8*n:]
	for i := range indexes {
		c := buf.PixelAt(i)
		idx, ok := lookup[c.Packed()]
		if !ok {
			return nil, fmt.Errorf("%w: pixel (%d, %d) is %s", ErrColorOutOfPalette, i%buf.Width, i/buf.Width, c.Hex())
		}
		indexes[i] = idx
	}

	return data, nil
}

// Decode parses an encoded image and expands it back to a pixel buffer.
func Decode(data []byte) (*pixel.Buffer, quantize.Report, error) {
	if len(data) < HeaderSize {
		return nil, quantize.Report{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), HeaderSize)
	}
	if string(data[:len(Magic)]) != Magic {
		return nil, quantize.Report{}, fmt.Errorf("%w: invalid magic tag %q", ErrInvalidFormat, data[:len(Magic)])
	}
	if data[27] != Escape {
		return nil, quantize.Report{}, fmt.Errorf("%w: invalid escape byte %#x", ErrInvalidFormat, data[27])
	}

	n := int(data[28])
	w := binary.LittleEndian.Uint32(data[32:])
	h := binary.LittleEndian.Uint32(data[36:])
	expected := uint64(HeaderSize) + 8*uint64(n) + uint64(w)*uint64(h)
	if uint64(len(data)) != expected {
		return nil, quantize.Report{}, fmt.Errorf("%w: %d bytes, expected %d for %d colors and %dx%d pixels",
			ErrInvalidFormat, len(data), expected, n, w, h)
	}

	buf, err := pixel.New(int(w), int(h))
	if err != nil {
		return nil, quantize.Report{}, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	report := quantize.Report{
		Palette:   make([]pixel.RGBA, n),
		Histogram: make([]int, n),
	}
	colors := data[HeaderSize : HeaderSize+4*n]
	histogram := data[HeaderSize+4*n : HeaderSize+8*n]
	for i := range n {
		report.Palette[i] = pixel.Unpack(binary.LittleEndian.Uint32(colors[i*4:]))
		report.Histogram[i] = int(binary.LittleEndian.Uint32(histogram[i*4:]))
	}

	for i, idx := range data[HeaderSize+8*n:] {
		if int(idx) >= n {
			return nil, quantize.Report{}, fmt.Errorf("%w: pixel %d has index %d, palette holds %d colors", ErrInvalidFormat, i, idx, n)
		}
		buf.SetPixelAt(i, report.Palette[idx])
	}

	return buf, report, nil
}
