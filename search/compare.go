// Package search decides whether quantized images look alike by comparing
// their palettes and histograms.
package search

import (
	"math"

	"picquant/pixel"
	"picquant/quantize"
)

// Candidate is one image of a corpus searched against a target.
type Candidate struct {
	Report   quantize.Report
	Metadata Metadata
}

func distance(a, b pixel.RGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	da := float64(a.A) - float64(b.A)
	return math.Sqrt(dr*dr + dg*dg + db*db + da*da)
}

// nearestDistance returns the Euclidean RGBA distance from c to the closest
// palette color, +Inf for an empty palette.
func nearestDistance(c pixel.RGBA, palette []pixel.RGBA) float64 {
	best := math.Inf(1)
	for _, p := range palette {
		best = min(best, distance(c, p))
	}
	return best
}

// Nearest returns the index of the palette color closest to c, the first one
// on ties, or -1 for an empty palette.
func Nearest(c pixel.RGBA, palette []pixel.RGBA) int {
	best, bestDist := -1, math.Inf(1)
	for i, p := range palette {
		if d := distance(c, p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func normalize(h []int, n int) []float64 {
	total := 0
	for _, v := range h {
		total += v
	}

	res := make([]float64, n)
	if total == 0 {
		return res
	}
	for i := range res {
		res[i] = float64(h[i]) / float64(total)
	}
	return res
}

// ChiSquare returns the symmetric chi-square statistic between the first
// min(len(a), len(b)) entries of both histograms, each normalized by its own
// total.
func ChiSquare(a, b []int) float64 {
	n := min(len(a), len(b))
	pa, pb := normalize(a, n), normalize(b, n)

	var res float64
	for i := range n {
		if sum := pa[i] + pb[i]; sum != 0 {
			d := pa[i] - pb[i]
			res += d * d / sum
		}
	}
	return res
}

func paletteMatch(target, candidate quantize.Report, opts Options) bool {
	limit := opts.threshold() * 2.55

	check := func(c pixel.RGBA) bool {
		return nearestDistance(c, candidate.Palette) <= limit
	}

	if len(opts.Colors) == 0 {
		for _, c := range target.Palette {
			if !check(c) {
				return false
			}
		}
		return true
	}

	for _, i := range opts.Colors {
		if i < 0 || i >= len(target.Palette) {
			continue
		}
		if !check(target.Palette[i]) {
			return false
		}
	}
	return true
}

// Compare reports whether candidate is similar to target: every selected
// target color must have a candidate color within threshold*2.55 and the
// histograms must not differ by more than threshold/100.
//
// Color indices outside the target palette are ignored; use
// Options.Validate to reject them.
func Compare(target, candidate quantize.Report, opts Options) bool {
	if !paletteMatch(target, candidate, opts) {
		return false
	}
	return ChiSquare(target.Histogram, candidate.Histogram) <= opts.threshold()/100
}

// FilterCorpus returns the indices of the candidates that pass the metadata
// filters and are similar to target.
func FilterCorpus(target quantize.Report, candidates []Candidate, opts Options) ([]int, error) {
	if err := opts.Validate(target); err != nil {
		return nil, err
	}

	var res []int
	for i, c := range candidates {
		if !MatchMetadata(c.Metadata, opts) {
			continue
		}
		if Compare(target, c.Report, opts) {
			res = append(res, i)
		}
	}
	return res, nil
}
