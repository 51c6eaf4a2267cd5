package preprocess

import (
	"image"
	"image/color"
	"math"
)

func newPaper(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 240
	}
	return img
}

// fillRotatedRect paints a w×h rectangle centred on (cx, cy) and turned by
// deg degrees (clockwise on screen).
func fillRotatedRect(img *image.Gray, cx, cy, w, h, deg float64, v uint8) {
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			u := dx*cos + dy*sin
			t := -dx*sin + dy*cos
			if math.Abs(u) <= w/2 && math.Abs(t) <= h/2 {
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
	}
}

func fillRect(img *image.Gray, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
}
