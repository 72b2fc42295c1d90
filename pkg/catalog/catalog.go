// Package catalog lists the stored images the display can actually show.
package catalog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"io/fs"
	"log"
	"strings"
	"unicode/utf8"
)

var ErrUnsupported = errors.New("unsupported image")

type Kind int

const (
	Unsupported Kind = iota
	Bitmap
	Jpeg
)

func (k Kind) String() string {
	switch k {
	case Bitmap:
		return "bmp"
	case Jpeg:
		return "jpeg"
	}
	return "unsupported"
}

// Descriptor is one eligible image. File is the name to open; Path is the
// bounded form kept for the slideshow and shown on pages.
type Descriptor struct {
	File   string `json:"file"`
	Path   string `json:"path"`
	Kind   Kind   `json:"kind"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Depth  int    `json:"depth"`
	Size   int64  `json:"size"`
}

// Catalog is rebuilt by every Scan
type Catalog struct {
	maxEntries int
	maxPathLen int

	entries []Descriptor
	skipped int
	dropped int
}

func New(maxEntries, maxPathLen int) *Catalog {
	return &Catalog{maxEntries: maxEntries, maxPathLen: maxPathLen}
}

// KindOf derives the kind from the file name suffix, ignoring case
func KindOf(name string) Kind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".bmp"):
		return Bitmap
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return Jpeg
	}
	return Unsupported
}

// Scan enumerates fsys in directory order and keeps the images that fit a
// width x height display, replacing the previous list. Files that are not
// eligible are left out; entries beyond the capacity are dropped.
func (c *Catalog) Scan(fsys fs.FS, width, height int) []Descriptor {
	c.entries = c.entries[:0]
	c.skipped, c.dropped = 0, 0

	dirEntries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		log.Printf("Catalog: failed to read image storage: %v", err)
		return c.Entries()
	}

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		d, err := Probe(fsys, de.Name())
		if err == nil && !d.Fits(width, height) {
			err = fmt.Errorf("%s is %dx%d: %w", de.Name(), d.Width, d.Height, ErrUnsupported)
		}
		if err != nil {
			c.skipped++
			continue
		}
		if len(c.entries) >= c.maxEntries {
			c.dropped++
			continue
		}
		d.Path = truncatePath(d.File, c.maxPathLen)
		c.entries = append(c.entries, d)
	}

	log.Printf("Catalog: %d images eligible for %dx%d, %d skipped, %d dropped", len(c.entries), width, height, c.skipped, c.dropped)
	return c.Entries()
}

// Probe reads only the header of name and reports kind, size and depth.
// Unknown suffixes, unreadable headers and unsupported depths wrap
// ErrUnsupported.
func Probe(fsys fs.FS, name string) (Descriptor, error) {
	d := Descriptor{File: name, Path: name, Kind: KindOf(name)}
	if d.Kind == Unsupported {
		return d, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}

	f, err := fsys.Open(name)
	if err != nil {
		return d, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		d.Size = info.Size()
	}

	switch d.Kind {
	case Bitmap:
		err = probeBitmap(f, &d)
	case Jpeg:
		err = probeJpeg(f, &d)
	}
	if err != nil {
		return d, fmt.Errorf("%s: %v: %w", name, err, ErrUnsupported)
	}
	return d, nil
}

// Fits reports whether d can be drawn unscaled on a width x height display
func (d Descriptor) Fits(width, height int) bool {
	return d.Width <= width && d.Height <= height
}

const bmpHeaderLen = 30

func probeBitmap(r io.Reader, d *Descriptor) error {
	hdr := make([]byte, bmpHeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return fmt.Errorf("short bitmap header: %w", err)
	}
	if string(hdr[:2]) != "BM" {
		return errors.New("missing BM signature")
	}

	w := int32(binary.LittleEndian.Uint32(hdr[18:22]))
	h := int32(binary.LittleEndian.Uint32(hdr[22:26]))
	// Negative height marks a top-down bitmap
	if h < 0 {
		h = -h
	}
	if w <= 0 || h == 0 {
		return fmt.Errorf("bad dimensions %dx%d", w, h)
	}
	d.Width, d.Height = int(w), int(h)
	d.Depth = int(binary.LittleEndian.Uint16(hdr[28:30]))

	if d.Depth != 1 && d.Depth != 24 {
		return fmt.Errorf("%d bit color depth", d.Depth)
	}
	return nil
}

func probeJpeg(r io.Reader, d *Descriptor) error {
	cfg, err := jpeg.DecodeConfig(r)
	if err != nil {
		return err
	}
	d.Width, d.Height, d.Depth = cfg.Width, cfg.Height, 24
	return nil
}

// truncatePath keeps at most the last max bytes so the extension survives.
// The cut moves forward to a rune boundary.
func truncatePath(p string, max int) string {
	if max <= 0 || len(p) <= max {
		return p
	}
	i := len(p) - max
	for i < len(p) && !utf8.RuneStart(p[i]) {
		i++
	}
	return p[i:]
}

func (c *Catalog) Len() int { return len(c.entries) }

func (c *Catalog) At(i int) Descriptor { return c.entries[i] }

// Entries returns a copy of the current list
func (c *Catalog) Entries() []Descriptor {
	out := make([]Descriptor, len(c.entries))
	copy(out, c.entries)
	return out
}

// Find looks an entry up by file name or by its bounded path
func (c *Catalog) Find(name string) (Descriptor, bool) {
	for _, d := range c.entries {
		if d.File == name || d.Path == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Skipped counts files left out by the last scan as ineligible
func (c *Catalog) Skipped() int { return c.skipped }

// Dropped counts eligible files beyond the capacity in the last scan
func (c *Catalog) Dropped() int { return c.dropped }
