package quantize

import "picquant/pixel"

type distanceFunc func(a, b pixel.RGBA) int

func manhattan(a, b pixel.RGBA) int {
	return abs(int(a.R)-int(b.R)) + abs(int(a.G)-int(b.G)) + abs(int(a.B)-int(b.B))
}

func squaredRGB(a, b pixel.RGBA) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return dr*dr + dg*dg + db*db
}

func squaredRGBA(a, b pixel.RGBA) int {
	da := int(a.A) - int(b.A)
	return squaredRGB(a, b) + da*da
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// nearest returns the index of the palette entry closest to c, the lowest
// index winning ties.
func nearest(c pixel.RGBA, palette []pixel.RGBA, dist distanceFunc) int {
	best, bestDist := 0, dist(c, palette[0])
	for i := 1; i < len(palette) && bestDist > 0; i++ {
		if d := dist(c, palette[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// clusters holds the palette index assigned to every pixel of a buffer.
type clusters []int

func newClusters(buf *pixel.Buffer) clusters {
	return make(clusters, buf.Len())
}

// assign maps every pixel to its nearest center and reports whether any
// pixel moved to another cluster.
func (cl clusters) assign(buf *pixel.Buffer, centers []pixel.RGBA, dist distanceFunc) bool {
	changed := false
	for i := range cl {
		c := nearest(buf.PixelAt(i), centers, dist)
		if cl[i] != c {
			changed = true
			cl[i] = c
		}
	}
	return changed
}

func (cl clusters) histogram(n int) []int {
	h := make([]int, n)
	for _, c := range cl {
		h[c]++
	}
	return h
}

// recenter moves every center to the floored mean RGB of its members. Empty
// clusters collapse to black, alpha untouched.
func (cl clusters) recenter(buf *pixel.Buffer, centers []pixel.RGBA) {
	sums := make([][3]int, len(centers))
	counts := make([]int, len(centers))
	for i, c := range cl {
		p := buf.PixelAt(i)
		sums[c][0] += int(p.R)
		sums[c][1] += int(p.G)
		sums[c][2] += int(p.B)
		counts[c]++
	}

	for i, s := range sums {
		n := max(counts[i], 1)
		centers[i].R = uint8(s[0] / n)
		centers[i].G = uint8(s[1] / n)
		centers[i].B = uint8(s[2] / n)
	}
}

// apply overwrites every pixel with the color of its cluster.
func (cl clusters) apply(buf *pixel.Buffer, centers []pixel.RGBA) {
	for i, c := range cl {
		buf.SetPixelAt(i, centers[c])
	}
}
