package search

import (
	"errors"
	"fmt"
	"time"

	"picquant/quantize"
)

// DefaultThreshold is used when Options.Threshold is nil.
const DefaultThreshold = 50.0

var ErrInvalidOptions = errors.New("invalid search options")

// Options narrows a similarity search. Nil or empty fields do not constrain
// anything.
type Options struct {
	// Colors lists the target palette indices to look for in candidates.
	// All target colors are used when empty.
	Colors []int
	// Threshold is the tolerance in [0, 100].
	Threshold *float64
	// MinFileSize and MaxFileSize bound the candidate file size in KiB,
	// both inclusive.
	MinFileSize *int64
	MaxFileSize *int64
	// After and Before bound the candidate modification date. Before
	// includes the whole day following it.
	After  *time.Time
	Before *time.Time
}

func (o Options) threshold() float64 {
	if o.Threshold == nil {
		return DefaultThreshold
	}
	return *o.Threshold
}

// Validate checks the options against the target report.
func (o Options) Validate(target quantize.Report) error {
	for _, c := range o.Colors {
		if c < 0 || c >= len(target.Palette) {
			return fmt.Errorf("%w: color index %d outside target palette of %d colors", ErrInvalidOptions, c, len(target.Palette))
		}
	}
	if t := o.threshold(); !(t >= 0 && t <= 100) {
		return fmt.Errorf("%w: threshold %g not in [0, 100]", ErrInvalidOptions, t)
	}
	if o.MinFileSize != nil && o.MaxFileSize != nil && *o.MinFileSize > *o.MaxFileSize {
		return fmt.Errorf("%w: minimum file size %d KiB above maximum %d KiB", ErrInvalidOptions, *o.MinFileSize, *o.MaxFileSize)
	}
	return nil
}

// Metadata describes the file a candidate image was read from.
type Metadata struct {
	Size         int64
	LastModified time.Time
}

// MatchMetadata reports whether meta passes the file size and date filters.
func MatchMetadata(meta Metadata, opts Options) bool {
	if opts.After != nil && meta.LastModified.Before(*opts.After) {
		return false
	}
	if opts.Before != nil && !meta.LastModified.Before(opts.Before.AddDate(0, 0, 1)) {
		return false
	}
	if opts.MinFileSize != nil && meta.Size < *opts.MinFileSize*1024 {
		return false
	}
	if opts.MaxFileSize != nil && meta.Size > *opts.MaxFileSize*1024 {
		return false
	}
	return true
}
