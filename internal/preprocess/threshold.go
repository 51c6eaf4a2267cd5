package preprocess

import "image"

const (
	foreground uint8 = 255
	background uint8 = 0
)

// OtsuThreshold returns the global threshold maximizing between-class
// variance of the gray-level histogram. Pixels at or below the threshold form
// the dark class.
func OtsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, y):g.PixOffset(b.Max.X, y)]
		for _, v := range row {
			hist[v]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}

	var (
		sumB        float64
		wB          int
		maxVariance float64
		best        int
	)
	for t := range 256 {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		meanB := sumB / float64(wB)
		meanF := (sumAll - sumB) / float64(wF)
		d := meanB - meanF
		if variance := float64(wB) * float64(wF) * d * d; variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return uint8(best) //nolint:gosec // best is a histogram index in [0,255]
}

// Binarize applies an inverted Otsu threshold: dark strokes become 255 and
// the paper becomes 0. The returned image starts at (0,0).
func Binarize(g *image.Gray) (*image.Gray, uint8) {
	t := OtsuThreshold(g)
	return thresholdInv(g, t), t
}

func thresholdInv(g *image.Gray, t uint8) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := g.Pix[g.PixOffset(b.Min.X, y):g.PixOffset(b.Max.X, y)]
		dst := out.Pix[(y-b.Min.Y)*out.Stride:]
		for x, v := range src {
			if v <= t {
				dst[x] = foreground
			} else {
				dst[x] = background
			}
		}
	}
	return out
}
