// Package palette reads and writes palettes as RIFF PAL files.
package palette

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/image/riff"

	"picquant/pixel"
)

/*
typedef struct tagLOGPALETTE {
  WORD         palVersion;
  WORD         palNumEntries;
  PALETTEENTRY palPalEntry[1];
} LOGPALETTE;

typedef struct tagPALETTEENTRY {
  BYTE peRed;
  BYTE peGreen;
  BYTE peBlue;
  BYTE peFlags;
} PALETTEENTRY;
*/

const palVersion = 0x0300

var (
	riffType = riff.FourCC{'R', 'I', 'F', 'F'}
	palType  = riff.FourCC{'P', 'A', 'L', ' '}
	dataType = riff.FourCC{'d', 'a', 't', 'a'}
)

// Read returns every palette stored in a RIFF PAL stream. PAL entries carry
// no alpha, colors are returned opaque.
func Read(r io.Reader) ([][]pixel.RGBA, error) {
	formType, rd, err := riff.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not open RIFF stream: %w", err)
	} else if formType != palType {
		return nil, fmt.Errorf("unsupported RIFF content type: %s", string(formType[:]))
	}

	return readPalettes(rd, string(formType[:]))
}

func readPalettes(r *riff.Reader, ident string) ([][]pixel.RGBA, error) {
	var res [][]pixel.RGBA

	for {
		id, size, data, err := r.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return res, fmt.Errorf("could not read chunk %q#%d: %w", ident, len(res), err)
		}

		switch id {
		case riff.LIST:
			listType, list, lerr := riff.NewListReader(size, data)
			if lerr != nil {
				return res, fmt.Errorf("could not read list from chunk %q#%d: %w", ident, len(res), lerr)
			} else if listType != palType {
				return res, fmt.Errorf("chunk %q#%d unsupported type: %s", ident, len(res), string(listType[:]))
			}

			listRes, lerr := readPalettes(list, fmt.Sprintf("%s%d.%s", ident, len(res), listType[:]))
			res = append(res, listRes...)
			if lerr != nil {
				return res, lerr
			}
		case dataType:
			pal, err := readPalette(data, fmt.Sprintf("%s%d", ident, len(res)))
			if err != nil {
				return res, err
			}
			res = append(res, pal)
		default:
			return res, fmt.Errorf("unsupported chunk type in %q#%d: %s", ident, len(res), id[:])
		}
	}

	return res, nil
}

func readPalette(r io.Reader, ident string) ([]pixel.RGBA, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("could not read header from chunk %s: %w", ident, err)
	}

	if ver := binary.LittleEndian.Uint16(buf); ver != palVersion {
		return nil, fmt.Errorf("unsupported palette version in chunk %s: %#x", ident, ver)
	}

	count := binary.LittleEndian.Uint16(buf[2:])
	entries := make([]byte, 4*int(count))
	if _, err := io.ReadFull(r, entries); err != nil {
		return nil, fmt.Errorf("could not read %d colors from chunk %s: %w", count, ident, err)
	}

	res := make([]pixel.RGBA, count)
	for i := range res {
		res[i] = pixel.RGBA{
			R: entries[i*4],
			G: entries[i*4+1],
			B: entries[i*4+2],
			A: 0xff,
		}
	}

	return res, nil
}

// Write stores pals as one RIFF PAL stream, one data chunk per palette.
func Write(w io.Writer, pals ...[]pixel.RGBA) (int64, error) {
	n := 4
	for _, pal := range pals {
		n += 4 + 4 + 4 + len(pal)*4 // chunk id + chunk size + palVersion + palNumEntries + 4 bytes/color
	}

	header := make([]byte, 0, 12)
	header = append(header, riffType[:]...)
	header = binary.LittleEndian.AppendUint32(header, uint32(n))
	header = append(header, palType[:]...)
	if err := writeBytes(w, header); err != nil {
		return 0, fmt.Errorf("could not write RIFF header: %w", err)
	}

	count := int64(len(header))
	for i, pal := range pals {
		written, err := writePalette(w, pal)
		count += written
		if err != nil {
			return count, fmt.Errorf("could not write chunk %d: %w", i, err)
		}
	}

	return count, nil
}

func writePalette(w io.Writer, pal []pixel.RGBA) (int64, error) {
	if len(pal) > 0xffff {
		return 0, fmt.Errorf("too many colors: %d", len(pal))
	}

	chunk := make([]byte, 0, 12+len(pal)*4)
	chunk = append(chunk, dataType[:]...)
	chunk = binary.LittleEndian.AppendUint32(chunk, uint32(4+len(pal)*4))
	chunk = binary.LittleEndian.AppendUint16(chunk, palVersion)
	chunk = binary.LittleEndian.AppendUint16(chunk, uint16(len(pal)))
	for _, c := range pal {
		chunk = append(chunk, c.R, c.G, c.B, 0x00)
	}

	if err := writeBytes(w, chunk); err != nil {
		return 0, err
	}
	return int64(len(chunk)), nil
}

func writeBytes(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	} else if n != len(b) {
		return fmt.Errorf("wrote only %d/%d bytes", n, len(b))
	}

	return nil
}

// Save writes pal to a PAL file at path.
func Save(path string, pal []pixel.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create palette file %q: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Error("could not close palette file", "name", path, "error", closeErr)
		}
	}()

	if _, err = Write(f, pal); err != nil {
		return fmt.Errorf("could not save palette %q: %w", path, err)
	}
	return f.Sync()
}

// Load reads a PAL file and concatenates all the palettes it holds.
func Load(path string) ([]pixel.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open palette file %q: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Error("could not close palette file", "name", path, "error", closeErr)
		}
	}()

	pals, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("could not load palettes from %q: %w", path, err)
	}

	var res []pixel.RGBA
	for _, pal := range pals {
		res = append(res, pal...)
	}
	return res, nil
}
