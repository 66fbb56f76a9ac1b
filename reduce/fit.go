package reduce

import (
	"log/slog"
	"math"

	"picquant/pixel"
)

// fit downscales buf to fit within width x height, keeping its aspect ratio.
// A zero dimension is unconstrained and images are never enlarged.
func fit(logger *slog.Logger, buf *pixel.Buffer, width, height int) (*pixel.Buffer, error) {
	srcWidth := float64(buf.Width)
	srcHeight := float64(buf.Height)

	destWidth := float64(width)
	if destWidth == 0 || destWidth > srcWidth {
		destWidth = srcWidth
	}

	destHeight := float64(height)
	if destHeight == 0 || destHeight > srcHeight {
		destHeight = srcHeight
	}

	srcAR := srcWidth / srcHeight
	destAR := destWidth / destHeight
	if srcAR < destAR {
		destWidth = destHeight * srcAR
	} else if srcAR > destAR {
		destHeight = destWidth / srcAR
	}

	w := min(max(int(math.Round(destWidth)), 1), buf.Width)
	h := min(max(int(math.Round(destHeight)), 1), buf.Height)
	if w == buf.Width && h == buf.Height {
		return buf, nil
	}

	logger.Info("downscaling", "width", w, "height", h)
	return pixel.Downscale(buf, w, h)
}
