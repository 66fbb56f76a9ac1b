package reduce

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"picquant/imagefile"
	"picquant/indexed"
	"picquant/palette"
	"picquant/parallel"
	"picquant/pixel"
	"picquant/quantize"
)

func gradient(t *testing.T, w, h int) *pixel.Buffer {
	t.Helper()
	buf, err := pixel.New(w, h)
	if err != nil {
		t.Fatal(err)
	}
	for y := range h {
		for x := range w {
			buf.SetRGBA(x, y, pixel.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 80, A: 255})
		}
	}
	return buf
}

func TestFit(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	buf := gradient(t, 40, 20)

	for _, tt := range []struct {
		width, height int
		wantW, wantH  int
	}{
		{0, 0, 40, 20},
		{20, 0, 20, 10},
		{0, 5, 10, 5},
		{10, 10, 10, 5},
		{100, 100, 40, 20},
		{1, 1, 1, 1},
	} {
		got, err := fit(logger, buf, tt.width, tt.height)
		if err != nil {
			t.Fatal(err)
		}
		if got.Width != tt.wantW || got.Height != tt.wantH {
			t.Errorf("fit(%d, %d): expected %dx%d, got %dx%d", tt.width, tt.height, tt.wantW, tt.wantH, got.Width, got.Height)
		}
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	for _, tt := range []struct {
		name    string
		cmd     CLICmd
		wantErr bool
	}{
		{"defaults", CLICmd{Scan: dir, Dest: "out", Colors: 16, Format: "png", Indexed: true}, false},
		{"too many indexed colors", CLICmd{Scan: dir, Colors: 256, Format: "png", Indexed: true}, true},
		{"256 colors without indexed output", CLICmd{Scan: dir, Colors: 256, Format: "png"}, false},
		{"zero colors", CLICmd{Scan: dir, Colors: 0, Format: "png"}, true},
		{"missing scan path", CLICmd{Scan: filepath.Join(dir, "missing"), Colors: 4, Format: "png"}, true},
		{"short crop", CLICmd{Scan: dir, Colors: 4, Format: "png", Crop: []int{0, 0, 2}}, true},
		{"empty crop", CLICmd{Scan: dir, Colors: 4, Format: "png", Crop: []int{2, 2, 2, 4}}, true},
		{"negative width", CLICmd{Scan: dir, Colors: 4, Format: "png", Width: -1}, true},
		{"no output", CLICmd{Scan: dir, Colors: 4, Format: "none"}, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate(nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}

	c := CLICmd{Scan: dir, Dest: "out", Colors: 4, Format: "png"}
	if err := c.Validate(nil); err != nil {
		t.Fatal(err)
	}
	if c.Dest != filepath.Join(dir, "out") {
		t.Errorf("expected destination relative to the scanned folder, got %s", c.Dest)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	src := gradient(t, 32, 16)
	if _, err := imagefile.Save(src, "png", dir, "gradient"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, name := range quantize.Algorithms() {
		t.Run(name, func(t *testing.T) {
			alg, err := quantize.ParseAlgorithm(name)
			if err != nil {
				t.Fatal(err)
			}
			c := CLICmd{
				Scan:      filepath.Join(dir, "gradient.png"),
				Dest:      filepath.Join(t.TempDir(), "out"),
				Algorithm: alg,
				Colors:    4,
				Seed:      7,
				Crop:      []int{0, 0, 16, 16},
				Width:     8,
				Format:    "png",
				Indexed:   true,
				Compress:  true,
				Pal:       true,
			}
			if err := c.Validate(nil); err != nil {
				t.Fatal(err)
			}
			if err := c.Run(context.Background(), parallel.Start(1)); err != nil {
				t.Fatal(err)
			}

			buf, report, err := indexed.Load(filepath.Join(c.Dest, "gradient"+indexed.CompressedExt))
			if err != nil {
				t.Fatal(err)
			}
			if buf.Width != 8 || buf.Height != 8 {
				t.Errorf("expected an 8x8 image, got %dx%d", buf.Width, buf.Height)
			}
			if len(report.Palette) > 4 || report.Total() != 64 {
				t.Errorf("unexpected report: %d colors, %d pixels", len(report.Palette), report.Total())
			}

			preview, _, err := imagefile.Load(filepath.Join(c.Dest, "gradient.png"))
			if err != nil {
				t.Fatal(err)
			}
			for i := range preview.Len() {
				if report.Index(preview.PixelAt(i)) < 0 {
					t.Fatalf("preview pixel %d is not in the palette", i)
				}
			}

			pal, err := palette.Load(filepath.Join(c.Dest, "gradient.pal"))
			if err != nil {
				t.Fatal(err)
			}
			if len(pal) != len(report.Palette) {
				t.Errorf("expected %d palette entries, got %d", len(report.Palette), len(pal))
			}
		})
	}

	// the text file fails to decode, the image still gets processed
	c := CLICmd{Scan: dir, Dest: "out", Algorithm: quantize.Popularity, Colors: 2, Format: "none", Indexed: true}
	if err := c.Validate(nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(context.Background(), parallel.Start(2)); err == nil {
		t.Error("expected an error for the undecodable file")
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "gradient"+indexed.Ext)); err != nil {
		t.Errorf("expected the image to be quantized: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	if _, err := imagefile.Save(gradient(t, 4, 4), "png", dir, "a"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := CLICmd{Scan: dir, Dest: "out", Colors: 2, Format: "png", Indexed: true}
	if err := c.Validate(nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(ctx, parallel.Start(1)); err == nil {
		t.Error("expected an error after cancellation")
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "a"+indexed.Ext)); !os.IsNotExist(err) {
		t.Errorf("expected no output after cancellation, got %v", err)
	}
}
