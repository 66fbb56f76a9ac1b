package similar

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"picquant/imagefile"
	"picquant/indexed"
	"picquant/parallel"
	"picquant/quantize"
	"picquant/search"
)

// loader reads the quantization report of an image file. Indexed files are
// decoded, other images are quantized on the fly.
type loader struct {
	algorithm quantize.Algorithm
	colors    int
	seed      uint64
}

func (l loader) load(logger *slog.Logger, path string) (quantize.Report, error) {
	if indexed.IsIndexedFile(path) {
		_, report, err := indexed.Load(path)
		return report, err
	}

	buf, _, err := imagefile.Load(path)
	if err != nil {
		return quantize.Report{}, err
	}

	var q quantize.Quantizer
	if l.algorithm == quantize.KMeans {
		km := &quantize.KMeansQuantizer{Logger: logger}
		if l.seed != 0 {
			km.Rand = rand.New(rand.NewPCG(l.seed, l.seed))
		}
		q = km
	} else if q, err = quantize.New(l.algorithm); err != nil {
		return quantize.Report{}, err
	}

	report, err := q.Quantize(buf, l.colors)
	if err != nil {
		return quantize.Report{}, fmt.Errorf("could not quantize image %q: %w", path, err)
	}
	logger.Debug("quantized", "algorithm", l.algorithm, "colors", len(report.Palette))
	return report, nil
}

type entry struct {
	path      string
	candidate search.Candidate
	ok        bool
	// filtered is set when the file metadata excluded it before loading.
	filtered bool
}

// listCorpus returns the regular files of dir, leaving out palettes and the
// excluded path.
func listCorpus(dir, exclude string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read folder %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.EqualFold(filepath.Ext(e.Name()), ".pal") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if path == exclude {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

// loadCorpus reads every file on the pool. Files excluded by the size and
// date filters of opts are never decoded; files that cannot be read are
// logged and left out of the search.
func loadCorpus(ctx context.Context, pool *parallel.Pool, l loader, files []string, opts search.Options) []entry {
	entries := make([]entry, len(files))
	for i, path := range files {
		entries[i].path = path
		_, err := pool.Submit(ctx, func(id uint64) {
			logger := slog.Default().With("file", path, "task", id)

			info, err := os.Stat(path)
			if err != nil {
				logger.Error("cannot stat candidate", "error", err)
				return
			}
			meta := search.Metadata{Size: info.Size(), LastModified: info.ModTime()}
			if !search.MatchMetadata(meta, opts) {
				logger.Debug("filtered out", "size", meta.Size, "modified", meta.LastModified)
				entries[i].filtered = true
				return
			}

			report, err := l.load(logger, path)
			if err != nil {
				logger.Warn("skipping candidate", "error", err)
				return
			}

			entries[i].candidate = search.Candidate{Report: report, Metadata: meta}
			entries[i].ok = true
		})
		if err != nil {
			slog.Warn("stopping", "reason", err)
			break
		}
	}
	pool.Wait(true)
	return entries
}
