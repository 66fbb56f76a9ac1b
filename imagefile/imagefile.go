// Package imagefile loads raster images into pixel buffers and saves them
// back in standard formats.
package imagefile

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"picquant/pixel"
)

// Formats lists the output formats accepted by Save.
var Formats = []string{"png", "bmp", "tiff"}

// Load decodes the image at path and returns its pixels and format name.
func Load(path string) (*pixel.Buffer, string, error) {
	imgFile, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("could not open image %q: %w", path, err)
	}
	defer func() {
		if closeErr := imgFile.Close(); closeErr != nil {
			slog.Error("could not close image", "name", path, "error", closeErr)
		}
	}()

	img, imgType, err := image.Decode(imgFile)
	if err != nil {
		return nil, "", fmt.Errorf("could not decode image %q: %w", path, err)
	}

	buf, err := pixel.FromImage(img)
	if err != nil {
		return nil, "", fmt.Errorf("could not convert image %q: %w", path, err)
	}
	return buf, imgType, nil
}

// Save encodes buf as outType into destDir/name.outType and returns the
// written path. The image is written to a temporary file first.
func Save(buf *pixel.Buffer, outType, destDir, name string) (destPath string, err error) {
	destName := fmt.Sprintf("%s.%s", strings.TrimSuffix(name, filepath.Ext(name)), outType)
	destPath = filepath.Join(destDir, destName)

	outFile, err := os.CreateTemp(destDir, destName)
	if err != nil {
		return "", fmt.Errorf("could not create temporary destination %q: %w", destName, err)
	}
	canRename := false
	defer func() {
		if defErr := outFile.Sync(); defErr != nil && err == nil {
			err = fmt.Errorf("could not flush temporary destination %q: %w", destName, defErr)
		}
		if defErr := outFile.Close(); defErr != nil && err == nil {
			err = fmt.Errorf("could not close temporary destination %q: %w", destName, defErr)
		}

		if canRename && err == nil {
			if defErr := os.Rename(outFile.Name(), destPath); defErr != nil {
				err = fmt.Errorf("could not rename destination file %q: %w", destName, defErr)
			}
		} else if defErr := os.Remove(outFile.Name()); defErr != nil {
			slog.Error("could not remove temporary destination", "name", outFile.Name(), "error", defErr)
		}
	}()

	img := buf.Image()
	switch outType {
	case "png":
		enc := png.Encoder{
			CompressionLevel: png.BestCompression,
			BufferPool:       pngPool,
		}
		if err = enc.Encode(outFile, img); err != nil {
			return "", fmt.Errorf("could not encode PNG destination %q: %w", destName, err)
		}
	case "bmp":
		if err = bmp.Encode(outFile, img); err != nil {
			return "", fmt.Errorf("could not encode BMP destination %q: %w", destName, err)
		}
	case "tiff":
		if err = tiff.Encode(outFile, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return "", fmt.Errorf("could not encode TIFF destination %q: %w", destName, err)
		}
	default:
		return "", fmt.Errorf("unsupported output format: %s", outType)
	}

	canRename = true
	return destPath, nil
}

type pngEncoderBufferPool struct {
	pool sync.Pool
}

func (p *pngEncoderBufferPool) Get() *png.EncoderBuffer {
	return p.pool.Get().(*png.EncoderBuffer)
}

func (p *pngEncoderBufferPool) Put(buf *png.EncoderBuffer) {
	p.pool.Put(buf)
}

var pngPool = &pngEncoderBufferPool{
	pool: sync.Pool{
		New: func() any {
			return &png.EncoderBuffer{}
		},
	},
}
