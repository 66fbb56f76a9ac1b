package unpack

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"picquant/imagefile"
	"picquant/indexed"
	"picquant/palette"
	"picquant/quantize"
)

type CLICmd struct {
	File   string `arg:"" help:"Indexed image file to decode" type:"existingfile"`
	Dest   string `help:"Destination folder. Defaults to the folder of the indexed file."`
	Format string `help:"Output image format" enum:"png,bmp,tiff,none" default:"png"`
	Pal    bool   `help:"Also write the palette as a RIFF PAL file" default:"false"`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	file, err := filepath.Abs(c.File)
	if err != nil {
		return fmt.Errorf("invalid file path %q: %w", c.File, err)
	}
	if !indexed.IsIndexedFile(file) {
		return fmt.Errorf("not an indexed image file: %q", c.File)
	}
	c.File = file

	if c.Dest == "" {
		c.Dest = filepath.Dir(file)
	} else if c.Dest, err = filepath.Abs(c.Dest); err != nil {
		return fmt.Errorf("invalid destination path: %w", err)
	}
	return nil
}

func (c *CLICmd) Run(kctx *kong.Context) error {
	return c.unpack(kctx.Stdout)
}

func (c *CLICmd) unpack(out io.Writer) error {
	logger := slog.Default().With("file", c.File)

	buf, report, err := indexed.Load(c.File)
	if err != nil {
		return err
	}
	logger.Info("decoded", "width", buf.Width, "height", buf.Height, "colors", len(report.Palette))

	printReport(out, report)

	if c.Format == "none" && !c.Pal {
		return nil
	}
	if err := os.MkdirAll(c.Dest, 0o755); err != nil {
		return fmt.Errorf("unable to create destination folder %q: %w", c.Dest, err)
	}

	name := filepath.Base(c.File)
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".zst"), indexed.Ext)

	if c.Format != "none" {
		dest, err := imagefile.Save(buf, c.Format, c.Dest, name)
		if err != nil {
			return err
		}
		if info, err := os.Stat(dest); err == nil {
			logger.Info("saved image", "dest", dest, "size", humanize.Bytes(uint64(info.Size())))
		}
	}

	if c.Pal {
		dest := filepath.Join(c.Dest, name+".pal")
		if err := palette.Save(dest, report.Palette); err != nil {
			return err
		}
		logger.Info("saved palette", "dest", dest)
	}
	return nil
}

// printReport writes one line per palette entry: index, color and pixel count
// with its share of the image.
func printReport(out io.Writer, report quantize.Report) {
	total := report.Total()
	for i, c := range report.Palette {
		share := 0.0
		if total > 0 {
			share = 100 * float64(report.Histogram[i]) / float64(total)
		}
		fmt.Fprintf(out, "%3d\t%s\t%s\t%.2f%%\n", i, c.Hex(), humanize.Comma(int64(report.Histogram[i])), share)
	}
}
