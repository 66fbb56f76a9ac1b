package quantize

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"picquant/pixel"
)

var (
	black = pixel.RGBA{R: 0, G: 0, B: 0, A: 255}
	white = pixel.RGBA{R: 255, G: 255, B: 255, A: 255}
	red   = pixel.RGBA{R: 255, G: 0, B: 0, A: 255}
	green = pixel.RGBA{R: 0, G: 255, B: 0, A: 255}
	blue  = pixel.RGBA{R: 0, G: 0, B: 255, A: 255}
)

func newBuffer(t *testing.T, width, height int, colors ...pixel.RGBA) *pixel.Buffer {
	t.Helper()
	buf, err := pixel.New(width, height)
	if err != nil {
		t.Fatal(err)
	}
	if len(colors) != buf.Len() {
		t.Fatalf("%d colors given for %d pixels", len(colors), buf.Len())
	}
	for i, c := range colors {
		buf.SetPixelAt(i, c)
	}
	return buf
}

func gradient(t *testing.T, width, height int) *pixel.Buffer {
	t.Helper()
	colors := make([]pixel.RGBA, 0, width*height)
	for y := range height {
		for x := range width {
			colors = append(colors, pixel.RGBA{
				R: uint8(x * 255 / max(width-1, 1)),
				G: uint8(y * 255 / max(height-1, 1)),
				B: uint8((x + y) * 7),
				A: 255,
			})
		}
	}
	return newBuffer(t, width, height, colors...)
}

func seeded() *KMeansQuantizer {
	return &KMeansQuantizer{Rand: rand.New(rand.NewPCG(1, 2))}
}

func allQuantizers() map[string]Quantizer {
	return map[string]Quantizer{
		"k-means":    seeded(),
		"median-cut": MedianCutQuantizer{},
		"octree":     OctreeQuantizer{},
		"popularity": PopularityQuantizer{},
	}
}

func TestReportContract(t *testing.T) {
	for name, q := range allQuantizers() {
		for _, n := range []int{1, 2, 5, 16, 256} {
			buf := gradient(t, 12, 9)
			report, err := q.Quantize(buf, n)
			if err != nil {
				t.Fatalf("%s/%d: %v", name, n, err)
			}

			if total := report.Total(); total != buf.Len() {
				t.Errorf("%s/%d: histogram covers %d pixels, expected %d", name, n, total, buf.Len())
			}
			if len(report.Palette) != len(report.Histogram) {
				t.Errorf("%s/%d: palette has %d entries, histogram %d", name, n, len(report.Palette), len(report.Histogram))
			}
			if len(report.Palette) > n {
				t.Errorf("%s/%d: palette has %d entries", name, n, len(report.Palette))
			}
			if (name == "k-means" || name == "median-cut") && len(report.Palette) != n {
				t.Errorf("%s/%d: expected exactly %d colors, got %d", name, n, n, len(report.Palette))
			}
			for i := range buf.Len() {
				if report.Index(buf.PixelAt(i)) < 0 {
					t.Fatalf("%s/%d: pixel %d color %v is not in the palette", name, n, i, buf.PixelAt(i))
				}
			}
		}
	}
}

func TestHistogramMatchesPixels(t *testing.T) {
	// palettes of these algorithms never repeat a color
	for _, name := range []string{"median-cut", "octree", "popularity"} {
		q := allQuantizers()[name]
		buf := gradient(t, 10, 10)
		report, err := q.Quantize(buf, 7)
		if err != nil {
			t.Fatal(err)
		}

		counts := make([]int, len(report.Palette))
		for i := range buf.Len() {
			counts[report.Index(buf.PixelAt(i))]++
		}
		if !slices.Equal(counts, report.Histogram) {
			t.Errorf("%s: expected histogram %v, got %v", name, counts, report.Histogram)
		}
	}
}

func TestSingleColor(t *testing.T) {
	for name, q := range allQuantizers() {
		buf := gradient(t, 4, 4)
		report, err := q.Quantize(buf, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Palette) != 1 || report.Histogram[0] != 16 {
			t.Errorf("%s: unexpected report %+v", name, report)
		}
		for i := range buf.Len() {
			if buf.PixelAt(i) != report.Palette[0] {
				t.Fatalf("%s: pixel %d not set to the single palette color", name, i)
			}
		}
	}
}

func TestInvalidColorCount(t *testing.T) {
	for name, q := range allQuantizers() {
		for _, n := range []int{0, -1, 257} {
			buf := gradient(t, 3, 3)
			orig := append([]uint8(nil), buf.Pix...)

			if _, err := q.Quantize(buf, n); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("%s/%d: expected ErrInvalidArgument, got %v", name, n, err)
			}
			if !bytes.Equal(orig, buf.Pix) {
				t.Errorf("%s/%d: buffer modified on error", name, n)
			}
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	for _, name := range Algorithms() {
		alg, err := ParseAlgorithm(name)
		if err != nil {
			t.Fatal(err)
		}
		if alg.String() != name {
			t.Errorf("expected %s, got %s", name, alg)
		}
		if _, err := New(alg); err != nil {
			t.Errorf("New(%s): %v", name, err)
		}
	}

	if _, err := ParseAlgorithm("neuquant"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := Quantize(gradient(t, 2, 2), Algorithm(42), 2); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	var alg Algorithm
	if err := alg.UnmarshalText([]byte("Median-Cut")); err != nil || alg != MedianCut {
		t.Errorf("unexpected result %v, %v", alg, err)
	}
}

func TestPopularityDistinctColors(t *testing.T) {
	// given
	colors := []pixel.RGBA{red, green, blue, {R: 10, G: 20, B: 30, A: 40}}
	buf := newBuffer(t, 2, 2, colors...)

	// when
	report, err := Quantize(buf, Popularity, 4)
	if err != nil {
		t.Fatal(err)
	}

	// then
	if !slices.Equal(report.Palette, colors) {
		t.Errorf("expected palette %v, got %v", colors, report.Palette)
	}
	if !slices.Equal(report.Histogram, []int{1, 1, 1, 1}) {
		t.Errorf("unexpected histogram %v", report.Histogram)
	}
}

func TestPopularityRanking(t *testing.T) {
	// given
	near := pixel.RGBA{R: 250, G: 5, B: 5, A: 255}
	buf := newBuffer(t, 3, 2, blue, red, red, blue, near, red)

	// when
	report, err := Quantize(buf, Popularity, 2)
	if err != nil {
		t.Fatal(err)
	}

	// then
	if !slices.Equal(report.Palette, []pixel.RGBA{red, blue}) {
		t.Errorf("unexpected palette %v", report.Palette)
	}
	if !slices.Equal(report.Histogram, []int{4, 2}) {
		t.Errorf("unexpected histogram %v", report.Histogram)
	}
	if buf.PixelAt(4) != red {
		t.Errorf("expected %v to be remapped to red, got %v", near, buf.PixelAt(4))
	}
}

func TestPopularityFewerColors(t *testing.T) {
	buf := newBuffer(t, 2, 2, red, red, blue, red)
	report, err := Quantize(buf, Popularity, 200)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(report.Palette, []pixel.RGBA{red, blue}) || !slices.Equal(report.Histogram, []int{3, 1}) {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestOctreeTraversalOrder(t *testing.T) {
	tests := []struct {
		n         int
		palette   []pixel.RGBA
		histogram []int
	}{
		{8, []pixel.RGBA{black, red, blue, white}, []int{1, 1, 1, 1}},
		{2, []pixel.RGBA{black, red}, []int{2, 2}},
		{1, []pixel.RGBA{black}, []int{4}},
	}

	for _, tt := range tests {
		buf := newBuffer(t, 2, 2, white, blue, red, black)
		report, err := Quantize(buf, Octree, tt.n)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(report.Palette, tt.palette) {
			t.Errorf("n=%d: expected palette %v, got %v", tt.n, tt.palette, report.Palette)
		}
		if !slices.Equal(report.Histogram, tt.histogram) {
			t.Errorf("n=%d: expected histogram %v, got %v", tt.n, tt.histogram, report.Histogram)
		}
	}
}

func TestOctreeAveragesIgnoreAlpha(t *testing.T) {
	buf := newBuffer(t, 2, 1, pixel.RGBA{R: 1, G: 2, B: 3, A: 0}, pixel.RGBA{R: 1, G: 2, B: 3, A: 100})
	report, err := Quantize(buf, Octree, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(report.Palette, []pixel.RGBA{{R: 1, G: 2, B: 3, A: 255}}) || report.Histogram[0] != 2 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestMedianCutSplits(t *testing.T) {
	tests := []struct {
		n       int
		palette []pixel.RGBA
	}{
		{1, []pixel.RGBA{{R: 127, G: 127, B: 127, A: 255}}},
		{2, []pixel.RGBA{{R: 63, G: 127, B: 127, A: 255}, {R: 191, G: 127, B: 127, A: 255}}},
		{3, []pixel.RGBA{{R: 63, G: 63, B: 127, A: 255}, {R: 63, G: 191, B: 127, A: 255}, {R: 191, G: 127, B: 127, A: 255}}},
	}

	for _, tt := range tests {
		buf := newBuffer(t, 2, 1, black, white)
		report, err := Quantize(buf, MedianCut, tt.n)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(report.Palette, tt.palette) {
			t.Errorf("n=%d: expected palette %v, got %v", tt.n, tt.palette, report.Palette)
		}
	}

	buf := newBuffer(t, 2, 1, black, white)
	report, _ := Quantize(buf, MedianCut, 2)
	if !slices.Equal(report.Histogram, []int{1, 1}) {
		t.Errorf("unexpected histogram %v", report.Histogram)
	}
}

func TestKMeansConverges(t *testing.T) {
	colors := make([]pixel.RGBA, 0, 64)
	for i := range 64 {
		if i%4 == 0 {
			colors = append(colors, black)
		} else {
			colors = append(colors, white)
		}
	}
	buf := newBuffer(t, 8, 8, colors...)

	report, err := seeded().Quantize(buf, 2)
	if err != nil {
		t.Fatal(err)
	}

	for i, c := range report.Palette {
		switch c {
		case black:
			if report.Histogram[i] != 16 {
				t.Errorf("expected 16 black pixels, got %d", report.Histogram[i])
			}
		case white:
			if report.Histogram[i] != 48 {
				t.Errorf("expected 48 white pixels, got %d", report.Histogram[i])
			}
		default:
			t.Errorf("unexpected centroid %v", c)
		}
	}
	if !slices.Equal(colors, pixelsOf(buf)) {
		t.Error("a two color image should be left unchanged")
	}
}

func TestKMeansDeterministicSeed(t *testing.T) {
	a, err := seeded().Quantize(gradient(t, 16, 16), 6)
	if err != nil {
		t.Fatal(err)
	}
	b, err := seeded().Quantize(gradient(t, 16, 16), 6)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(a.Palette, b.Palette) || !slices.Equal(a.Histogram, b.Histogram) {
		t.Errorf("same seed gave different reports: %+v and %+v", a, b)
	}
}

func TestKMeansIterationCap(t *testing.T) {
	q := seeded()
	q.MaxIterations = 1
	buf := gradient(t, 16, 16)
	report, err := q.Quantize(buf, 12)
	if err != nil {
		t.Fatal(err)
	}
	if report.Total() != buf.Len() {
		t.Errorf("histogram covers %d pixels, expected %d", report.Total(), buf.Len())
	}
}

func pixelsOf(buf *pixel.Buffer) []pixel.RGBA {
	res := make([]pixel.RGBA, buf.Len())
	for i := range res {
		res[i] = buf.PixelAt(i)
	}
	return res
}
