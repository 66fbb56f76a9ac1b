package quantize

import (
	"log/slog"
	"math/rand/v2"

	"picquant/pixel"
)

// DefaultMaxIterations bounds the number of k-means passes when the
// assignment never settles.
const DefaultMaxIterations = 100

// KMeansQuantizer clusters pixels with Lloyd's algorithm using Manhattan RGB
// distance. The palette always holds exactly n colors.
type KMeansQuantizer struct {
	// Rand seeds the initial centroids. A randomly seeded source is used
	// when nil.
	Rand *rand.Rand
	// MaxIterations defaults to DefaultMaxIterations when zero.
	MaxIterations int
	Logger        *slog.Logger
}

func (q *KMeansQuantizer) Quantize(buf *pixel.Buffer, n int) (Report, error) {
	if err := checkArgs(buf, n); err != nil {
		return Report{}, err
	}

	rnd := q.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	maxIters := q.MaxIterations
	if maxIters <= 0 {
		maxIters = DefaultMaxIterations
	}
	logger := q.Logger
	if logger == nil {
		logger = slog.Default()
	}

	centroids := make([]pixel.RGBA, n)
	for i := range centroids {
		centroids[i] = pixel.RGBA{
			R: uint8(rnd.IntN(256)),
			G: uint8(rnd.IntN(256)),
			B: uint8(rnd.IntN(256)),
			A: 255,
		}
	}

	cl := newClusters(buf)
	cl.assign(buf, centroids, manhattan)

	iterations := 0
	for {
		cl.recenter(buf, centroids)
		iterations++
		if !cl.assign(buf, centroids, manhattan) {
			break
		}
		if iterations >= maxIters {
			logger.Warn("k-means did not converge", "iterations", iterations, "colors", n)
			break
		}
	}
	logger.Debug("k-means done", "iterations", iterations, "colors", n)

	cl.apply(buf, centroids)
	return Report{
		Palette:   centroids,
		Histogram: cl.histogram(n),
	}, nil
}
