package utils

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

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.png", true},
		{"d.bmp", true},
		{"e.tiff", false},
		{"f.pdf", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsSupportedImage(c.path), c.path)
	}
}

func writeTempPNG(t *testing.T, dir string, w, h int, col color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	path := filepath.Join(dir, "label.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadImageAndMetadata(t *testing.T) {
	p := writeTempPNG(t, t.TempDir(), 10, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img, meta, err := LoadImage(p)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 20, meta.Height)
	assert.Equal(t, p, meta.Path)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)

	_, _, err = LoadImage("label.gif")
	require.ErrorAs(t, err, &ipe)

	bad := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 3))
	src.SetGray(1, 1, color.Gray{Y: 200})

	data, err := EncodePNG(src)
	require.NoError(t, err)

	img, meta, err := DecodeImage(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 4, meta.Width)
	r, _, _, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(200)*0x101, r)
}

func TestFitWithin(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 100))
	assert.Same(t, img, FitWithin(img, 300))

	out := FitWithin(img, 50)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 25, out.Bounds().Dy())
}

func TestValidateImageConstraints(t *testing.T) {
	c := DefaultImageConstraints()
	require.Error(t, ValidateImageConstraints(nil, c))
	require.Error(t, ValidateImageConstraints(image.NewGray(image.Rect(0, 0, 4, 4)), c))
	require.NoError(t, ValidateImageConstraints(image.NewGray(image.Rect(0, 0, 64, 64)), c))
}

func TestCropGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	img.SetGray(5, 6, color.Gray{Y: 255})

	out := CropGray(img, image.Rect(4, 4, 8, 8))
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())
	assert.Equal(t, uint8(255), out.GrayAt(1, 2).Y)

	clipped := CropGray(img, image.Rect(8, 8, 20, 20))
	assert.Equal(t, 2, clipped.Bounds().Dx())
}

func TestBoxToRect(t *testing.T) {
	b := NewBox(12.5, 3.2, 1.1, 0.4)
	assert.InDelta(t, 1.1, b.MinX, 1e-12)
	r := b.ToRect(image.Rect(0, 0, 10, 10))
	assert.Equal(t, image.Rect(1, 0, 10, 4), r)
	assert.Equal(t, Box{MinX: 2, MinY: 3, MaxX: 4, MaxY: 5}, BoxFromRect(image.Rect(0, 0, 2, 2)).Offset(2, 3))
}
