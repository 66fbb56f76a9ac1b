package quantize

import (
	"slices"

	"picquant/pixel"
)

// MedianCutQuantizer splits the RGB cube at the midpoint of its longest axis
// until n boxes exist; every box contributes its center as a palette color.
type MedianCutQuantizer struct{}

type cube struct {
	min, max [3]int // r, g, b
}

func (c cube) volume() int {
	v := 1
	for ch := range 3 {
		v *= c.max[ch] - c.min[ch] + 1
	}
	return v
}

// longestAxis returns the channel with the widest range, r winning ties over
// g and g over b.
func (c cube) longestAxis() int {
	r := c.max[0] - c.min[0]
	g := c.max[1] - c.min[1]
	b := c.max[2] - c.min[2]
	switch {
	case r >= g && r >= b:
		return 0
	case g >= b:
		return 1
	}
	return 2
}

func (c cube) split() (cube, cube) {
	ch := c.longestAxis()
	mid := (c.min[ch] + c.max[ch]) / 2
	lo, hi := c, c
	lo.max[ch] = mid
	hi.min[ch] = mid + 1
	return lo, hi
}

func (c cube) centroid() pixel.RGBA {
	return pixel.RGBA{
		R: uint8((c.min[0] + c.max[0]) / 2),
		G: uint8((c.min[1] + c.max[1]) / 2),
		B: uint8((c.min[2] + c.max[2]) / 2),
		A: 255,
	}
}

func (MedianCutQuantizer) Quantize(buf *pixel.Buffer, n int) (Report, error) {
	if err := checkArgs(buf, n); err != nil {
		return Report{}, err
	}

	cubes := make([]cube, 1, n)
	cubes[0] = cube{max: [3]int{255, 255, 255}}
	for len(cubes) < n {
		largest, largestVolume := 0, 0
		for i, c := range cubes {
			if v := c.volume(); v > largestVolume {
				largest, largestVolume = i, v
			}
		}

		lo, hi := cubes[largest].split()
		cubes[largest] = lo
		cubes = slices.Insert(cubes, largest+1, hi)
	}

	palette := make([]pixel.RGBA, len(cubes))
	for i, c := range cubes {
		palette[i] = c.centroid()
	}

	// Assignment only depends on the final boxes, so a single pass gives the
	// same result as reassigning after every split.
	cl := newClusters(buf)
	cl.assign(buf, palette, manhattan)
	cl.apply(buf, palette)

	return Report{
		Palette:   palette,
		Histogram: cl.histogram(len(palette)),
	}, nil
}
