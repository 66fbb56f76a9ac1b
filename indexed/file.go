package indexed

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"picquant/pixel"
	"picquant/quantize"
)

const (
	Ext           = ".rimi"
	CompressedExt = Ext + ".zst"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// MaxDecompressedSize bounds the decompressed size of an indexed file, enough
// for a 16384x16384 image with a full palette.
var MaxDecompressedSize uint64 = uint64(Size(MaxColors, 16384, 16384))

// IsIndexedFile reports whether name carries one of the indexed file
// extensions.
func IsIndexedFile(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, Ext) || strings.HasSuffix(name, CompressedExt)
}

// Write encodes buf and report to w.
func Write(w io.Writer, buf *pixel.Buffer, report quantize.Report) (int64, error) {
	data, err := Encode(buf, report)
	if err != nil {
		return 0, err
	}

	n, err := w.Write(data)
	if err != nil {
		return int64(n), err
	} else if n != len(data) {
		return int64(n), fmt.Errorf("wrote only %d/%d bytes", n, len(data))
	}
	return int64(n), nil
}

// Read decodes an indexed image from r, transparently decompressing a zstd
// frame.
func Read(r io.Reader) (*pixel.Buffer, quantize.Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, quantize.Report{}, fmt.Errorf("could not read indexed image: %w", err)
	}

	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecompressedSize))
		if err != nil {
			return nil, quantize.Report{}, fmt.Errorf("could not create zstd decoder: %w", err)
		}
		defer dec.Close()

		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, quantize.Report{}, fmt.Errorf("could not decompress indexed image: %w", err)
		}
	}

	return Decode(data)
}

// Save writes an indexed image to path, inside a zstd frame when compress is
// set. The file is written to a temporary name and renamed once complete.
func Save(path string, buf *pixel.Buffer, report quantize.Report, compress bool) (err error) {
	data, err := Encode(buf, report)
	if err != nil {
		return err
	}

	if compress {
		enc, zerr := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if zerr != nil {
			return fmt.Errorf("could not create zstd encoder: %w", zerr)
		}
		data = enc.EncodeAll(data, nil)
		if zerr = enc.Close(); zerr != nil {
			return fmt.Errorf("could not close zstd encoder: %w", zerr)
		}
	}

	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	outFile, err := os.CreateTemp(dir, name)
	if err != nil {
		return fmt.Errorf("could not create temporary destination %q: %w", path, err)
	}
	canRename := false
	defer func() {
		if defErr := outFile.Close(); defErr != nil && err == nil {
			err = fmt.Errorf("could not close temporary destination %q: %w", path, defErr)
		}

		if canRename && err == nil {
			if defErr := os.Rename(outFile.Name(), path); defErr != nil {
				err = fmt.Errorf("could not rename destination file %q: %w", path, defErr)
			}
		} else if defErr := os.Remove(outFile.Name()); defErr != nil {
			slog.Error("could not remove temporary file", "name", outFile.Name(), "error", defErr)
		}
	}()

	if _, err = outFile.Write(data); err != nil {
		return fmt.Errorf("could not write %q: %w", path, err)
	}
	if err = outFile.Sync(); err != nil {
		return fmt.Errorf("could not flush %q: %w", path, err)
	}

	canRename = true
	return nil
}

// Load reads an indexed image file written by Save.
func Load(path string) (*pixel.Buffer, quantize.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, quantize.Report{}, fmt.Errorf("could not open %q: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Error("could not close indexed file", "name", path, "error", closeErr)
		}
	}()

	buf, report, err := Read(f)
	if err != nil {
		return nil, quantize.Report{}, fmt.Errorf("could not load %q: %w", path, err)
	}
	return buf, report, nil
}
