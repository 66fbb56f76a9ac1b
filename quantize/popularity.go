package quantize

import (
	"slices"

	"picquant/pixel"
)

// PopularityQuantizer keeps the n most frequent exact RGBA colors and maps
// every other pixel to the nearest of them by squared RGBA distance.
//
// Histogram counts the pixels mapped to each entry, which is the raw
// frequency of the color when every distinct color fits in the palette.
type PopularityQuantizer struct{}

func (PopularityQuantizer) Quantize(buf *pixel.Buffer, n int) (Report, error) {
	if err := checkArgs(buf, n); err != nil {
		return Report{}, err
	}

	counts := make(map[uint32]int)
	var order []uint32 // first occurrence order
	for i := range buf.Len() {
		key := buf.PixelAt(i).Packed()
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	slices.SortStableFunc(order, func(a, b uint32) int {
		return counts[b] - counts[a]
	})
	if len(order) > n {
		order = order[:n]
	}

	palette := make([]pixel.RGBA, len(order))
	index := make(map[uint32]int, len(order))
	for i, key := range order {
		palette[i] = pixel.Unpack(key)
		index[key] = i
	}

	histogram := make([]int, len(palette))
	for i := range buf.Len() {
		c := buf.PixelAt(i)
		idx, ok := index[c.Packed()]
		if !ok {
			idx = nearest(c, palette, squaredRGBA)
			buf.SetPixelAt(i, palette[idx])
		}
		histogram[idx]++
	}

	return Report{
		Palette:   palette,
		Histogram: histogram,
	}, nil
}
