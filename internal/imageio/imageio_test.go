package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(10*x + y),
				G: uint8(20*y + x),
				B: uint8(x + 2*y),
				A: uint8(255 - x),
			})
		}
	}
	return img
}

func TestSaveAndLoadPNGRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.png")
	src := testImage(5, 4)

	require.NoError(t, Save(path, src, DefaultOptions()))

	got, format, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, src.Bounds(), got.Bounds())
	assert.Equal(t, src.Pix, got.Pix)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
}

func TestToNRGBAConvertsGray(t *testing.T) {
	gray := image.NewGray(image.Rect(2, 3, 4, 5))
	gray.SetGray(2, 3, color.Gray{Y: 77})

	got := ToNRGBA(gray)
	require.NotNil(t, got)
	assert.Equal(t, image.Rect(0, 0, 2, 2), got.Bounds())
	assert.Equal(t, color.NRGBA{R: 77, G: 77, B: 77, A: 255}, got.NRGBAAt(0, 0))
}

func TestToNRGBAPassesThroughNRGBA(t *testing.T) {
	src := testImage(3, 3)
	assert.Same(t, src, ToNRGBA(src))
	assert.Nil(t, ToNRGBA(nil))
}

func TestClone(t *testing.T) {
	src := testImage(3, 2)
	dup := Clone(src)
	require.Equal(t, src.Pix, dup.Pix)

	dup.Pix[0] = ^dup.Pix[0]
	assert.NotEqual(t, src.Pix[0], dup.Pix[0])
}

func TestFit(t *testing.T) {
	src := testImage(40, 20)

	assert.Same(t, src, Fit(src, 0))
	assert.Same(t, src, Fit(src, 40))

	small := Fit(src, 10)
	assert.Equal(t, 10, small.Bounds().Dx())
	assert.Equal(t, 5, small.Bounds().Dy())
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    png.CompressionLevel
		wantErr bool
	}{
		{"", png.DefaultCompression, false},
		{"default", png.DefaultCompression, false},
		{"speed", png.BestSpeed, false},
		{"BEST", png.BestCompression, false},
		{"none", png.NoCompression, false},
		{"max", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatForPath(t *testing.T) {
	f, err := FormatForPath("a/b.PNG")
	require.NoError(t, err)
	assert.Equal(t, "png", f)

	f, err = FormatForPath("x.jpeg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", f)

	_, err = FormatForPath("x.webp")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestEncodeJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testImage(8, 8), "jpeg", Options{JPEGQuality: 80}))

	_, format, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestIsImagePath(t *testing.T) {
	assert.True(t, IsImagePath("photo.JPG"))
	assert.True(t, IsImagePath("scan.tiff"))
	assert.False(t, IsImagePath("notes.txt"))
	assert.False(t, IsImagePath("noext"))
}
