package quantize

import "picquant/pixel"

// Report is the result of one quantization run. Palette[i] is the color of
// palette index i and Histogram[i] the number of pixels assigned to it.
type Report struct {
	Palette   []pixel.RGBA
	Histogram []int
}

// Total returns the number of pixels covered by the histogram.
func (r Report) Total() int {
	total := 0
	for _, n := range r.Histogram {
		total += n
	}
	return total
}

// Index returns the first palette index holding c, or -1.
func (r Report) Index(c pixel.RGBA) int {
	for i, p := range r.Palette {
		if p == c {
			return i
		}
	}
	return -1
}

func (r Report) Clone() Report {
	return Report{
		Palette:   append([]pixel.RGBA(nil), r.Palette...),
		Histogram: append([]int(nil), r.Histogram...),
	}
}
