package catalog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bmpFile(w, h int32, depth uint16) []byte {
	b := make([]byte, 54)
	copy(b, "BM")
	binary.LittleEndian.PutUint32(b[2:], 54)
	binary.LittleEndian.PutUint32(b[10:], 54)
	binary.LittleEndian.PutUint32(b[14:], 40)
	binary.LittleEndian.PutUint32(b[18:], uint32(w))
	binary.LittleEndian.PutUint32(b[22:], uint32(h))
	binary.LittleEndian.PutUint16(b[26:], 1)
	binary.LittleEndian.PutUint16(b[28:], depth)
	return b
}

func jpegFile(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func names(ds []Descriptor) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.File)
	}
	return out
}

func TestScan_FiltersByDisplay(t *testing.T) {
	fsys := fstest.MapFS{
		"a.bmp": {Data: bmpFile(64, 32, 1)},
		"b.bmp": {Data: bmpFile(200, 64, 24)},
		"c.jpg": {Data: jpegFile(t, 128, 64)},
		"d.txt": {Data: []byte("hello")},
	}
	c := New(64, 32)

	got := c.Scan(fsys, 128, 64)
	assert.Equal(t, []string{"a.bmp", "c.jpg"}, names(got))
	assert.Equal(t, 2, c.Skipped())
	assert.Equal(t, 0, c.Dropped())

	assert.Equal(t, Descriptor{File: "a.bmp", Path: "a.bmp", Kind: Bitmap, Width: 64, Height: 32, Depth: 1, Size: 54}, got[0])
	assert.Equal(t, Jpeg, got[1].Kind)
	assert.Equal(t, 24, got[1].Depth)
}

func TestScan_Eligibility(t *testing.T) {
	fsys := fstest.MapFS{
		"deep.bmp":    {Data: bmpFile(10, 10, 8)},
		"exact.BMP":   {Data: bmpFile(128, 64, 24)},
		"tall.bmp":    {Data: bmpFile(128, 65, 1)},
		"topdown.bmp": {Data: bmpFile(16, -16, 1)},
		"fake.jpg":    {Data: []byte("not a jpeg")},
		"short.bmp":   {Data: []byte("BM")},
		"big.jpeg":    {Data: jpegFile(t, 129, 10)},
		"photo.JPEG":  {Data: jpegFile(t, 32, 32)},
		"sub":         {Mode: fs.ModeDir | 0o755},
	}
	got := New(64, 32).Scan(fsys, 128, 64)

	assert.Equal(t, []string{"exact.BMP", "photo.JPEG", "topdown.bmp"}, names(got))
	for _, d := range got {
		assert.LessOrEqual(t, d.Width, 128)
		assert.LessOrEqual(t, d.Height, 64)
		assert.Contains(t, []int{1, 24}, d.Depth)
	}
	assert.Equal(t, 16, got[2].Height)
}

func TestScan_DropsBeyondCapacity(t *testing.T) {
	fsys := fstest.MapFS{}
	for i := 0; i < 5; i++ {
		fsys[fmt.Sprintf("img%d.bmp", i)] = &fstest.MapFile{Data: bmpFile(8, 8, 1)}
	}
	c := New(3, 32)

	got := c.Scan(fsys, 128, 64)
	assert.Equal(t, []string{"img0.bmp", "img1.bmp", "img2.bmp"}, names(got))
	assert.Equal(t, 2, c.Dropped())
}

func TestScan_TruncatesPathKeepingEnd(t *testing.T) {
	long := "a-rather-long-holiday-picture-name.bmp"
	fsys := fstest.MapFS{long: {Data: bmpFile(8, 8, 1)}}
	c := New(64, 12)

	got := c.Scan(fsys, 128, 64)
	require.Len(t, got, 1)
	assert.Equal(t, "ure-name.bmp", got[0].Path)
	assert.Equal(t, long, got[0].File)

	d, ok := c.Find("ure-name.bmp")
	assert.True(t, ok)
	assert.Equal(t, long, d.File)
}

func TestTruncatePath_KeepsWholeRunes(t *testing.T) {
	got := truncatePath(strings.Repeat("é", 20)+".bm", 32)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 14)+".bm", got)

	assert.Equal(t, "short.bmp", truncatePath("short.bmp", 32))
}

func TestScan_ReplacesPreviousList(t *testing.T) {
	fsys := fstest.MapFS{
		"a.bmp": {Data: bmpFile(8, 8, 1)},
		"b.bmp": {Data: bmpFile(8, 8, 1)},
	}
	c := New(64, 32)
	c.Scan(fsys, 128, 64)
	c.Scan(fsys, 128, 64)
	assert.Equal(t, 2, c.Len())

	delete(fsys, "a.bmp")
	c.Scan(fsys, 128, 64)
	assert.Equal(t, []string{"b.bmp"}, names(c.Entries()))

	c.Scan(fstest.MapFS{}, 128, 64)
	assert.Equal(t, 0, c.Len())
}

func TestProbe_Unsupported(t *testing.T) {
	fsys := fstest.MapFS{
		"notes.txt": {Data: []byte("x")},
		"gray.bmp":  {Data: bmpFile(8, 8, 4)},
	}
	for _, name := range []string{"notes.txt", "gray.bmp"} {
		_, err := Probe(fsys, name)
		assert.ErrorIs(t, err, ErrUnsupported, name)
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Bitmap, KindOf("X.Bmp"))
	assert.Equal(t, Jpeg, KindOf("x.jpg"))
	assert.Equal(t, Jpeg, KindOf("x.JPEG"))
	assert.Equal(t, Unsupported, KindOf("x.png"))
	assert.Equal(t, Unsupported, KindOf("bmp"))
}
