// Package display draws text and images on the device screen.
package display

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Display is what the rest of the firmware draws through. Coordinates for
// DrawText are the left end of the text baseline.
type Display interface {
	Width() int
	Height() int
	Clear()
	DrawText(x, y int, s string)
	DrawImage(img image.Image)
	Present() error
}

// Snapshotter is implemented by displays that can hand out their buffer
type Snapshotter interface {
	Snapshot() image.Image
}

// canvas is a buffer drawn into and pushed out by Present
type canvas struct {
	buf draw.Image
}

func (c *canvas) Width() int  { return c.buf.Bounds().Dx() }
func (c *canvas) Height() int { return c.buf.Bounds().Dy() }

func (c *canvas) Clear() {
	draw.Draw(c.buf, c.buf.Bounds(), image.Black, image.Point{}, draw.Src)
}

func (c *canvas) DrawText(x, y int, s string) {
	d := font.Drawer{
		Dst:  c.buf,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// DrawImage places img at the top-left corner, clipped to the screen
func (c *canvas) DrawImage(img image.Image) {
	draw.Draw(c.buf, c.buf.Bounds(), img, img.Bounds().Min, draw.Src)
}

func (c *canvas) Snapshot() image.Image {
	out := image.NewGray(c.buf.Bounds())
	draw.Draw(out, out.Bounds(), c.buf, c.buf.Bounds().Min, draw.Src)
	return out
}

// Framebuffer is a display without hardware, used headless and in tests
type Framebuffer struct {
	canvas
	gray     *image.Gray
	presents int
}

func NewFramebuffer(width, height int) *Framebuffer {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	return &Framebuffer{canvas: canvas{buf: gray}, gray: gray}
}

func (f *Framebuffer) Present() error {
	f.presents++
	return nil
}

// Presents counts Present calls
func (f *Framebuffer) Presents() int { return f.presents }

// Lit reports whether the pixel at x, y is on
func (f *Framebuffer) Lit(x, y int) bool {
	return f.gray.GrayAt(x, y).Y >= 0x80
}

// LitCount is the number of pixels switched on
func (f *Framebuffer) LitCount() int {
	n := 0
	b := f.gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if f.gray.GrayAt(x, y).Y >= 0x80 {
				n++
			}
		}
	}
	return n
}
