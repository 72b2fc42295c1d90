package display

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"testing"
	"testing/fstest"

	"golang.org/x/image/bmp"

	"general-display/pkg/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textCall struct {
	x, y int
	s    string
}

type recorder struct {
	*Framebuffer
	texts  []textCall
	clears int
}

func newRecorder() *recorder { return &recorder{Framebuffer: NewFramebuffer(128, 64)} }

func (r *recorder) Clear() {
	r.clears++
	r.Framebuffer.Clear()
}

func (r *recorder) DrawText(x, y int, s string) {
	r.texts = append(r.texts, textCall{x, y, s})
	r.Framebuffer.DrawText(x, y, s)
}

func whiteRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

// monoBitmap builds a bottom-up 1 bit bitmap from rows given top first
func monoBitmap(w int, rows [][]byte) []byte {
	stride := (w + 31) / 32 * 4
	h := len(rows)
	offset := 14 + 40 + 8
	b := make([]byte, offset+stride*h)
	copy(b, "BM")
	binary.LittleEndian.PutUint32(b[2:], uint32(len(b)))
	binary.LittleEndian.PutUint32(b[10:], uint32(offset))
	binary.LittleEndian.PutUint32(b[14:], 40)
	binary.LittleEndian.PutUint32(b[18:], uint32(w))
	binary.LittleEndian.PutUint32(b[22:], uint32(h))
	binary.LittleEndian.PutUint16(b[26:], 1)
	binary.LittleEndian.PutUint16(b[28:], 1)
	// palette: black, white
	copy(b[54:], []byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0})
	for i, row := range rows {
		copy(b[offset+(h-1-i)*stride:], row)
	}
	return b
}

func TestFramebuffer_TextAndClear(t *testing.T) {
	fb := NewFramebuffer(128, 64)
	assert.Equal(t, 128, fb.Width())
	assert.Equal(t, 64, fb.Height())
	assert.Zero(t, fb.LitCount())

	fb.DrawText(10, 12, "192.168.4.1")
	assert.NotZero(t, fb.LitCount())

	fb.Clear()
	assert.Zero(t, fb.LitCount())
}

func TestShowNetworkInfo(t *testing.T) {
	ap := NetworkInfo{
		Address:     "192.168.4.1",
		SSID:        "ESP_Config",
		AccessPoint: true,
		Encrypted:   true,
		Password:    "EspWiFiDisplay",
		ShowIP:      true,
	}

	cases := []struct {
		name  string
		info  func() NetworkInfo
		force bool
		want  []textCall
	}{
		{"boot, ip only", func() NetworkInfo { return ap }, false,
			[]textCall{{10, 12, "192.168.4.1"}}},
		{"forced", func() NetworkInfo { return ap }, true,
			[]textCall{{10, 12, "192.168.4.1"}, {10, 32, "ESP_Config"}}},
		{"exhibit password", func() NetworkInfo { i := ap; i.ExhibitPassword = true; return i }, false,
			[]textCall{{10, 12, "192.168.4.1"}, {10, 52, "EspWiFiDisplay"}}},
		{"open access point", func() NetworkInfo { i := ap; i.ExhibitPassword = true; i.Encrypted = false; return i }, false,
			[]textCall{{10, 12, "192.168.4.1"}, {10, 52, "no pw required"}}},
		{"station hides password", func() NetworkInfo { i := ap; i.AccessPoint = false; i.ExhibitPassword = true; return i }, true,
			[]textCall{{10, 12, "192.168.4.1"}, {10, 32, "ESP_Config"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRecorder()
			require.NoError(t, ShowNetworkInfo(r, tc.info(), tc.force))
			assert.Equal(t, tc.want, r.texts)
			assert.Equal(t, 1, r.clears)
			assert.Equal(t, 1, r.Presents())
		})
	}
}

func TestRender_Bitmap24(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, whiteRGBA(16, 8)))
	fsys := fstest.MapFS{"w.bmp": {Data: buf.Bytes()}}

	fb := NewFramebuffer(128, 64)
	require.NoError(t, Render(fb, fsys, catalog.Descriptor{File: "w.bmp", Kind: catalog.Bitmap, Depth: 24}))

	assert.Equal(t, 16*8, fb.LitCount())
	assert.True(t, fb.Lit(15, 7))
	assert.False(t, fb.Lit(16, 0))
	assert.Equal(t, 1, fb.Presents())
}

func TestRender_Jpeg(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, whiteRGBA(32, 16), &jpeg.Options{Quality: 100}))
	fsys := fstest.MapFS{"w.jpg": {Data: buf.Bytes()}}

	fb := NewFramebuffer(128, 64)
	require.NoError(t, Render(fb, fsys, catalog.Descriptor{File: "w.jpg", Kind: catalog.Jpeg, Depth: 24}))
	assert.True(t, fb.Lit(0, 0))
	assert.True(t, fb.Lit(31, 15))
	assert.False(t, fb.Lit(40, 40))
}

func TestDecode_OneBitBitmap(t *testing.T) {
	data := monoBitmap(8, [][]byte{
		{0x80}, // top row: leftmost pixel set
		{0x01}, // bottom row: rightmost pixel set
	})

	img, err := Decode(bytes.NewReader(data), catalog.Bitmap)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 2), img.Bounds())

	white := color.RGBA{0xff, 0xff, 0xff, 0xff}
	assert.Equal(t, white, color.RGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, white, color.RGBAModel.Convert(img.At(7, 1)))
	assert.NotEqual(t, white, color.RGBAModel.Convert(img.At(1, 0)))
}

func TestDecode_OneBitBitmapTruncated(t *testing.T) {
	data := monoBitmap(8, [][]byte{{0xff}, {0xff}})
	_, err := Decode(bytes.NewReader(data[:len(data)-3]), catalog.Bitmap)
	assert.Error(t, err)
}

func TestDecode_Unsupported(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil), catalog.Unsupported)
	assert.ErrorIs(t, err, catalog.ErrUnsupported)
}
