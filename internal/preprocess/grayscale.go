package preprocess

import (
	"image"

	"github.com/MeKo-Tech/nutrigood/internal/utils"
	"github.com/disintegration/imaging"
)

// ToGrayscale converts img to 8-bit luminance. Single-channel 8-bit input is
// returned as-is (re-based to the origin
// when needed); callers must treat the result as read-only.
func ToGrayscale(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, &InvalidImageError{Reason: "image is nil"}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, &InvalidImageError{Reason: "image has no pixels"}
	}
	if g, ok := img.(*image.Gray); ok {
		if b.Min == (image.Point{}) {
			return g, nil
		}
		return utils.CropGray(g, b), nil
	}

	// imaging.Grayscale uses Rec. 601 luma weights and yields equal RGB
	// channels, so the red channel carries the luminance.
	nrgba := imaging.Grayscale(img)
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := range w {
			dst[x] = row[x*4]
		}
	}
	return out, nil
}
