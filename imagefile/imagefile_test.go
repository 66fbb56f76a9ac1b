package imagefile

import (
	"bytes"
	"os"
	"testing"

	"picquant/pixel"
)

func TestSaveLoad(t *testing.T) {
	buf, err := pixel.New(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range buf.Len() {
		buf.SetPixelAt(i, pixel.RGBA{R: uint8(i * 40), G: 10, B: uint8(200 - i), A: 255})
	}

	dir := t.TempDir()
	for _, format := range Formats {
		t.Run(format, func(t *testing.T) {
			path, err := Save(buf, format, dir, "picture.jpeg")
			if err != nil {
				t.Fatal(err)
			}

			loaded, imgType, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if imgType != format {
				t.Errorf("expected format %s, got %s", format, imgType)
			}
			if !bytes.Equal(loaded.Pix, buf.Pix) {
				t.Errorf("pixels differ after a %s round trip", format)
			}
		})
	}

	if _, err := Save(buf, "gif", dir, "picture"); err == nil {
		t.Error("expected an error for an unsupported format")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(Formats) {
		t.Errorf("expected %d files, got %d", len(Formats), len(entries))
	}
}
