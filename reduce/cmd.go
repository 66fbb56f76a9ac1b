package reduce

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"picquant/imagefile"
	"picquant/indexed"
	"picquant/palette"
	"picquant/parallel"
	"picquant/pixel"
	"picquant/quantize"
)

type CLICmd struct {
	Scan      string             `help:"Source image, or folder to scan" default:"."`
	Dest      string             `help:"Destination folder for quantized pictures. Relative to the source folder if not absolute." default:"quantized"`
	Algorithm quantize.Algorithm `help:"Quantization algorithm (k-means, median-cut, octree, popularity)" default:"k-means" group:"quantize"`
	Colors    int                `help:"Number of palette colors" default:"16" group:"quantize"`
	Seed      uint64             `help:"Seed for the k-means initial centroids, random when 0" group:"quantize"`
	Crop      []int              `help:"Crop region minX,minY,maxX,maxY applied before quantizing" group:"resize"`
	Width     int                `help:"Max width, aspect ratio is kept" group:"resize"`
	Height    int                `help:"Max height, aspect ratio is kept" group:"resize"`
	Invert    bool               `help:"Invert colors before quantizing" default:"false"`
	Format    string             `help:"Format of the quantized preview image" enum:"png,bmp,tiff,none" default:"png" group:"output"`
	Indexed   bool               `help:"Write the indexed image file" default:"true" negatable:"" group:"output"`
	Compress  bool               `help:"Compress indexed image files with zstd" default:"false" group:"output"`
	Pal       bool               `help:"Write the palette as a RIFF PAL file" default:"false" group:"output"`

	CropRect image.Rectangle `kong:"-"`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	scan, err := filepath.Abs(c.Scan)
	var info os.FileInfo
	if err == nil {
		info, err = os.Stat(scan)
	}
	if err != nil {
		return fmt.Errorf("invalid scan path %q: %w", c.Scan, err)
	}
	c.Scan = scan

	scanDir := scan
	if !info.IsDir() {
		scanDir = filepath.Dir(scan)
	}
	if !filepath.IsAbs(c.Dest) {
		c.Dest = filepath.Join(scanDir, c.Dest)
	}

	maxColors := quantize.MaxColors
	if c.Indexed {
		maxColors = indexed.MaxColors
	}
	if c.Colors < 1 || c.Colors > maxColors {
		return fmt.Errorf("invalid number of colors %d, should be within [1, %d]", c.Colors, maxColors)
	}

	switch {
	case c.Width < 0:
		return fmt.Errorf("invalid max width: %d", c.Width)
	case c.Height < 0:
		return fmt.Errorf("invalid max height: %d", c.Height)
	}

	if len(c.Crop) > 0 {
		if len(c.Crop) != 4 {
			return fmt.Errorf("crop region needs 4 values, got %d", len(c.Crop))
		}
		c.CropRect = image.Rect(c.Crop[0], c.Crop[1], c.Crop[2], c.Crop[3])
		if c.CropRect.Empty() || c.CropRect.Min.X < 0 || c.CropRect.Min.Y < 0 {
			return fmt.Errorf("invalid crop region: %v", c.CropRect)
		}
	}

	if !c.Indexed && !c.Pal && c.Format == "none" {
		return fmt.Errorf("nothing to write, enable at least one output")
	}

	return nil
}

func (c *CLICmd) Run(ctx context.Context, pool *parallel.Pool) error {
	files, err := c.sources()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.Dest, 0o755); err != nil {
		return fmt.Errorf("unable to create destination folder %q: %w", c.Dest, err)
	}

	var processedCount, errCount atomic.Uint64
	var inBytes, outBytes atomic.Int64
	submitted := 0
	for _, file := range files {
		_, err := pool.Submit(ctx, func(id uint64) {
			logger := slog.Default().With("file", file, "task", id)

			in, out, err := c.process(logger, file)
			if err != nil {
				errCount.Add(1)
				logger.Error("could not quantize image", "error", err)
				return
			}
			inBytes.Add(in)
			outBytes.Add(out)
			processedCount.Add(1)
		})
		if err != nil {
			slog.Warn("stopping", "reason", err)
			break
		}
		submitted++
	}

	pool.Wait(true)

	processed := processedCount.Load()
	errors := errCount.Load()
	slog.Info("stats", "processed", processed, "errors", errors, "total", processed+errors,
		"input", humanize.Bytes(uint64(inBytes.Load())), "indexed", humanize.Bytes(uint64(outBytes.Load())))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted, %d files not processed: %w", len(files)-submitted, err)
	}
	if errors > 0 {
		return fmt.Errorf("error processing %d files", errors)
	}
	return nil
}

// sources lists the images to quantize: the scanned file itself, or the
// regular files of the scanned folder except the tool's own outputs.
func (c *CLICmd) sources() ([]string, error) {
	info, err := os.Stat(c.Scan)
	if err != nil {
		return nil, fmt.Errorf("cannot stat %q: %w", c.Scan, err)
	}
	if !info.IsDir() {
		return []string{c.Scan}, nil
	}

	entries, err := os.ReadDir(c.Scan)
	if err != nil {
		return nil, fmt.Errorf("unable to read folder %q: %w", c.Scan, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || indexed.IsIndexedFile(name) || strings.EqualFold(filepath.Ext(name), ".pal") {
			continue
		}
		files = append(files, filepath.Join(c.Scan, name))
	}
	return files, nil
}

func (c *CLICmd) quantizer(logger *slog.Logger) (quantize.Quantizer, error) {
	if c.Algorithm != quantize.KMeans {
		return quantize.New(c.Algorithm)
	}

	q := &quantize.KMeansQuantizer{Logger: logger}
	if c.Seed != 0 {
		q.Rand = rand.New(rand.NewPCG(c.Seed, c.Seed))
	}
	return q, nil
}

// process quantizes one image and writes the requested outputs. It returns
// the size of the source file and of the indexed file.
func (c *CLICmd) process(logger *slog.Logger, file string) (int64, int64, error) {
	info, err := os.Stat(file)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot stat source file: %w", err)
	}

	buf, _, err := imagefile.Load(file)
	if err != nil {
		return 0, 0, err
	}

	if !c.CropRect.Empty() {
		logger.Info("cropping", "region", c.CropRect)
		if buf, err = pixel.Crop(buf, c.CropRect); err != nil {
			return 0, 0, fmt.Errorf("could not crop image: %w", err)
		}
	}

	if c.Width > 0 || c.Height > 0 {
		if buf, err = fit(logger, buf, c.Width, c.Height); err != nil {
			return 0, 0, fmt.Errorf("could not resize image: %w", err)
		}
	}

	if c.Invert {
		pixel.Invert(buf)
	}

	q, err := c.quantizer(logger)
	if err != nil {
		return 0, 0, err
	}
	report, err := q.Quantize(buf, c.Colors)
	if err != nil {
		return 0, 0, fmt.Errorf("could not quantize image: %w", err)
	}
	logger.Info("quantized", "algorithm", c.Algorithm, "colors", len(report.Palette),
		"width", buf.Width, "height", buf.Height)

	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if c.Format != "none" {
		dest, err := imagefile.Save(buf, c.Format, c.Dest, base)
		if err != nil {
			return 0, 0, err
		}
		logger.Debug("saved preview", "dest", dest)
	}

	if c.Pal {
		if err := palette.Save(filepath.Join(c.Dest, base+".pal"), report.Palette); err != nil {
			return 0, 0, err
		}
	}

	var outSize int64
	if c.Indexed {
		dest := filepath.Join(c.Dest, base+indexed.Ext)
		if c.Compress {
			dest = filepath.Join(c.Dest, base+indexed.CompressedExt)
		}
		if err := indexed.Save(dest, buf, report, c.Compress); err != nil {
			return 0, 0, err
		}

		outInfo, err := os.Stat(dest)
		if err != nil {
			return 0, 0, fmt.Errorf("cannot stat indexed file: %w", err)
		}
		outSize = outInfo.Size()
		logger.Info("saved indexed image", "dest", dest, "size", humanize.Bytes(uint64(outSize)),
			"reduction", fmt.Sprintf("%.1f%%", 100*float64(info.Size()-outSize)/float64(max(info.Size(), 1))))
	}

	return info.Size(), outSize, nil
}
