// Package quantize reduces an RGBA image to a small palette.
//
// Every Quantizer rewrites the pixels of the buffer it is given to their
// assigned palette color and returns a Report describing the palette and how
// many pixels ended up on each entry.
package quantize

import (
	"errors"
	"fmt"
	"strings"

	"picquant/pixel"
)

// MaxColors is the largest palette a quantizer produces, so that every
// palette index fits in a byte.
const MaxColors = 256

var ErrInvalidArgument = errors.New("invalid argument")

// Quantizer defines a color quantizer for pixel buffers.
type Quantizer interface {
	// Quantize reduces buf to at most n colors, in place.
	Quantize(buf *pixel.Buffer, n int) (Report, error)
}

type Algorithm int

const (
	KMeans Algorithm = iota
	MedianCut
	Octree
	Popularity
)

var algorithmNames = [...]string{
	KMeans:     "k-means",
	MedianCut:  "median-cut",
	Octree:     "octree",
	Popularity: "popularity",
}

// Algorithms lists the names accepted by ParseAlgorithm.
func Algorithms() []string {
	return append([]string(nil), algorithmNames[:]...)
}

func (a Algorithm) String() string {
	if a < 0 || int(a) >= len(algorithmNames) {
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
	return algorithmNames[a]
}

func ParseAlgorithm(name string) (Algorithm, error) {
	for i, n := range algorithmNames {
		if strings.EqualFold(n, name) {
			return Algorithm(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidArgument, name)
}

func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}

// New returns the quantizer implementing alg with its default settings.
func New(alg Algorithm) (Quantizer, error) {
	switch alg {
	case KMeans:
		return &KMeansQuantizer{}, nil
	case MedianCut:
		return MedianCutQuantizer{}, nil
	case Octree:
		return OctreeQuantizer{}, nil
	case Popularity:
		return PopularityQuantizer{}, nil
	}
	return nil, fmt.Errorf("%w: unknown algorithm %v", ErrInvalidArgument, alg)
}

// Quantize reduces buf in place to at most n colors using alg.
func Quantize(buf *pixel.Buffer, alg Algorithm, n int) (Report, error) {
	q, err := New(alg)
	if err != nil {
		return Report{}, err
	}
	return q.Quantize(buf, n)
}

func checkArgs(buf *pixel.Buffer, n int) error {
	if n < 1 || n > MaxColors {
		return fmt.Errorf("%w: color count %d not in [1, %d]", ErrInvalidArgument, n, MaxColors)
	}
	if buf == nil || buf.Len() == 0 || len(buf.Pix) != buf.Len()*4 {
		return fmt.Errorf("%w: empty or malformed pixel buffer", ErrInvalidArgument)
	}
	return nil
}
