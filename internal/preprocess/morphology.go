package preprocess

import "image"

// Dilate grows foreground regions of a binary mask with a kw×kh rectangular
// structuring element. Kernels of 1×1 (or smaller) return a copy of mask.
func Dilate(mask *image.Gray, kw, kh int) *image.Gray {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], mask.Pix[mask.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	if kw > 1 {
		dilateRuns(out.Pix, w, h, 1, out.Stride, kw/2)
	}
	if kh > 1 {
		dilateRuns(out.Pix, h, w, out.Stride, 1, kh/2)
	}
	return out
}

// dilateRuns performs a 1-D max filter of radius r along n lines of length
// l. step is the distance between samples on a line and lineStep the
// distance between lines, so the same code serves rows and columns.
func dilateRuns(pix []uint8, l, n, step, lineStep, r int) {
	prefix := make([]int, l+1)
	for i := range n {
		base := i * lineStep
		for j := range l {
			prefix[j+1] = prefix[j]
			if pix[base+j*step] != background {
				prefix[j+1]++
			}
		}
		for j := range l {
			lo, hi := max(j-r, 0), min(j+r+1, l)
			if prefix[hi]-prefix[lo] > 0 {
				pix[base+j*step] = foreground
			} else {
				pix[base+j*step] = background
			}
		}
	}
}
