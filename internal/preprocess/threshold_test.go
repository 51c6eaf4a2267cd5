package preprocess

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOtsuThreshold_Bimodal(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 10))
	for i := range img.Pix {
		if i%20 < 10 {
			img.Pix[i] = 30
		} else {
			img.Pix[i] = 220
		}
	}
	th := OtsuThreshold(img)
	assert.GreaterOrEqual(t, th, uint8(30))
	assert.Less(t, th, uint8(220))
}

func TestBinarize_Inverted(t *testing.T) {
	img := newPaper(20, 10)
	fillRect(img, image.Rect(0, 0, 5, 10), 20)

	bin, th := Binarize(img)
	assert.Less(t, th, uint8(240))
	assert.Equal(t, foreground, bin.GrayAt(1, 1).Y, "dark stroke becomes foreground")
	assert.Equal(t, background, bin.GrayAt(15, 5).Y, "paper becomes background")
}

func TestBinarize_UniformImage(t *testing.T) {
	img := newPaper(10, 10)
	bin, _ := Binarize(img)
	assert.Equal(t, img.Bounds(), bin.Bounds())
}
