package display

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"io/fs"

	"golang.org/x/image/bmp"

	"general-display/pkg/catalog"
)

// Render decodes a catalog entry from fsys and shows it
func Render(d Display, fsys fs.FS, desc catalog.Descriptor) error {
	f, err := fsys.Open(desc.File)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", desc.File, err)
	}
	defer f.Close()

	img, err := Decode(f, desc.Kind)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", desc.File, err)
	}

	d.Clear()
	d.DrawImage(img)
	return d.Present()
}

// Decode reads a full image of the given kind
func Decode(r io.Reader, kind catalog.Kind) (image.Image, error) {
	switch kind {
	case catalog.Jpeg:
		return jpeg.Decode(r)
	case catalog.Bitmap:
		return bmp.Decode(r)
	}
	return nil, catalog.ErrUnsupported
}
