package similar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"picquant/parallel"
	"picquant/pixel"
	"picquant/quantize"
	"picquant/search"
)

const dateLayout = "2006-01-02"

type OpParams struct {
	Target    string             `help:"Indexed file or image to compare against" required:""`
	Scan      string             `help:"Folder to search" default:"."`
	Algorithm quantize.Algorithm `help:"Quantization algorithm for images that are not indexed" default:"k-means" group:"quantize"`
	Colors    int                `help:"Number of palette colors for images that are not indexed" default:"16" group:"quantize"`
	Seed      uint64             `help:"Seed for the k-means initial centroids, random when 0" group:"quantize"`
	Threshold float64            `help:"Tolerance, from 0 for identical images up to 100" default:"50"`
	Color     []int              `help:"Index of a target palette color that matches must contain, repeatable" group:"filter"`
	Hex       []string           `help:"Color as #RRGGBB, resolved to the closest target palette color, repeatable" group:"filter"`
	MinSize   int64              `help:"Minimum file size in KiB" group:"filter"`
	MaxSize   int64              `help:"Maximum file size in KiB, 0 for no limit" group:"filter"`
	After     string             `help:"Only files modified on or after this date (YYYY-MM-DD)" group:"filter"`
	Before    string             `help:"Only files modified on or before this date (YYYY-MM-DD)" group:"filter"`

	opts      search.Options `kong:"-"`
	hexColors []pixel.RGBA   `kong:"-"`
}

type CLICmd struct {
	Ls struct {
		OpParams
	} `cmd:"" help:"List images similar to the target"`
	Cp struct {
		OpParams
		Dest string `help:"Destination folder for similar images. Relative to the scan folder if not absolute." default:"similar"`
	} `cmd:"" help:"Copy images similar to the target"`
	Mv struct {
		OpParams
		Dest string `help:"Destination folder for similar images. Relative to the scan folder if not absolute." default:"similar"`
	} `cmd:"" help:"Move images similar to the target"`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	switch kctx.Selected().Name {
	case "ls":
		return c.Ls.validate()
	case "cp":
		if err := c.Cp.validate(); err != nil {
			return err
		}
		c.Cp.Dest = destDir(c.Cp.Scan, c.Cp.Dest)
	case "mv":
		if err := c.Mv.validate(); err != nil {
			return err
		}
		c.Mv.Dest = destDir(c.Mv.Scan, c.Mv.Dest)
	}
	return nil
}

func (c *CLICmd) Run(ctx context.Context, kctx *kong.Context, pool *parallel.Pool) error {
	switch subCmd := kctx.Selected().Name; subCmd {
	case "ls":
		return c.Ls.run(ctx, pool, kctx.Stdout, "", nil)
	case "cp":
		return c.Cp.run(ctx, pool, kctx.Stdout, c.Cp.Dest, copyFile)
	case "mv":
		return c.Mv.run(ctx, pool, kctx.Stdout, c.Mv.Dest, moveFile)
	default:
		return fmt.Errorf("unsupported operation: %s", subCmd)
	}
}

func destDir(scan, dest string) string {
	if filepath.IsAbs(dest) {
		return dest
	}
	return filepath.Join(scan, dest)
}

func (p *OpParams) validate() error {
	scanDir, err := filepath.Abs(p.Scan)
	var info os.FileInfo
	if err == nil {
		if info, err = os.Stat(scanDir); err == nil && !info.IsDir() {
			err = fmt.Errorf("not a directory")
		}
	}
	if err != nil {
		return fmt.Errorf("invalid scan path %q: %w", p.Scan, err)
	}
	p.Scan = scanDir

	if p.Target, err = filepath.Abs(p.Target); err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}
	if info, err = os.Stat(p.Target); err != nil {
		return fmt.Errorf("invalid target: %w", err)
	} else if !info.Mode().IsRegular() {
		return fmt.Errorf("invalid target %q: not a regular file", p.Target)
	}

	if p.Colors < 1 || p.Colors > quantize.MaxColors {
		return fmt.Errorf("invalid number of colors %d, should be within [1, %d]", p.Colors, quantize.MaxColors)
	}

	p.opts = search.Options{
		Colors:    p.Color,
		Threshold: &p.Threshold,
	}
	if p.MinSize < 0 || p.MaxSize < 0 {
		return fmt.Errorf("invalid file size limits: %d, %d", p.MinSize, p.MaxSize)
	}
	if p.MinSize > 0 {
		p.opts.MinFileSize = &p.MinSize
	}
	if p.MaxSize > 0 {
		p.opts.MaxFileSize = &p.MaxSize
	}

	if p.After != "" {
		after, err := time.ParseInLocation(dateLayout, p.After, time.Local)
		if err != nil {
			return fmt.Errorf("invalid after date %q: %w", p.After, err)
		}
		p.opts.After = &after
	}
	if p.Before != "" {
		before, err := time.ParseInLocation(dateLayout, p.Before, time.Local)
		if err != nil {
			return fmt.Errorf("invalid before date %q: %w", p.Before, err)
		}
		p.opts.Before = &before
	}

	p.hexColors = p.hexColors[:0]
	for _, s := range p.Hex {
		color, err := pixel.ParseHex(s)
		if err != nil {
			return err
		}
		p.hexColors = append(p.hexColors, color)
	}

	// palette indices are checked once the target is loaded
	return p.opts.Validate(quantize.Report{Palette: make([]pixel.RGBA, quantize.MaxColors)})
}

func (p *OpParams) loader() loader {
	return loader{algorithm: p.Algorithm, colors: p.Colors, seed: p.Seed}
}

// run searches the scan folder for images similar to the target, prints each
// match to out and applies fileOp to it when set.
func (p *OpParams) run(ctx context.Context, pool *parallel.Pool, out io.Writer, dest string,
	fileOp func(src, dest string) error,
) error {
	l := p.loader()
	target, err := l.load(slog.Default().With("file", p.Target), p.Target)
	if err != nil {
		return fmt.Errorf("could not read target: %w", err)
	}

	opts := p.opts
	opts.Colors = append([]int(nil), p.opts.Colors...)
	for _, color := range p.hexColors {
		i := search.Nearest(color, target.Palette)
		if i < 0 {
			return fmt.Errorf("cannot resolve %s, target has no palette", color.Hex())
		}
		slog.Debug("resolved color", "color", color.Hex(), "index", i, "match", target.Palette[i].Hex())
		opts.Colors = append(opts.Colors, i)
	}
	if err := opts.Validate(target); err != nil {
		return err
	}

	files, err := listCorpus(p.Scan, p.Target)
	if err != nil {
		return err
	}

	entries := loadCorpus(ctx, pool, l, files, opts)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted while reading %q: %w", p.Scan, err)
	}

	var loaded []entry
	var filtered int
	candidates := make([]search.Candidate, 0, len(entries))
	for _, e := range entries {
		if e.filtered {
			filtered++
		} else if e.ok {
			loaded = append(loaded, e)
			candidates = append(candidates, e.candidate)
		}
	}

	matches, err := search.FilterCorpus(target, candidates, opts)
	if err != nil {
		return err
	}

	if fileOp != nil && len(matches) > 0 {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("unable to create destination folder %q: %w", dest, err)
		}
	}

	var errCount int
	for _, i := range matches {
		e := loaded[i]
		meta := e.candidate.Metadata
		fmt.Fprintf(out, "%s\t%s\t%s\n", e.path, humanize.Bytes(uint64(meta.Size)), meta.LastModified.Format(time.DateTime))

		if fileOp == nil {
			continue
		}
		to := filepath.Join(dest, filepath.Base(e.path))
		if err := fileOp(e.path, to); err != nil {
			errCount++
			slog.Error("could not operate image", "from", e.path, "to", to, "error", err)
		}
	}

	slog.Info("stats", "scanned", len(files), "filtered", filtered, "unreadable", len(files)-filtered-len(loaded),
		"matches", len(matches), "errors", errCount)

	if errCount > 0 {
		return fmt.Errorf("error processing %d files", errCount)
	}
	return nil
}
