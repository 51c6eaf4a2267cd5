package preprocess

import (
	"image"
	"math"

	"github.com/MeKo-Tech/nutrigood/internal/utils"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// SkewAngle estimates the corrective rotation, in degrees, for g.
//
// Foreground pixels are the dark class of an Otsu split. The minimum-area
// rectangle around them gives a raw edge angle which is folded into
// [-90, 0); angles below -45 get 90 added, and the result is negated.
// The returned value lies in (-45, 45]. ok is false when g has too few
// foreground pixels to span a rectangle.
func SkewAngle(g *image.Gray) (angle float64, ok bool) {
	pts := foregroundExtremes(g, OtsuThreshold(g))
	if len(utils.ConvexHull(pts)) < 3 {
		return 0, false
	}
	rect := utils.MinimumAreaRectangle(pts)
	return correctionAngle(utils.EdgeAngle(rect[0], rect[1])), true
}

func correctionAngle(raw float64) float64 {
	raw = math.Mod(raw, 90)
	if raw >= 0 {
		raw -= 90
	}
	if raw < -45 {
		raw += 90
	}
	if raw == 0 {
		return 0
	}
	return -raw
}

// foregroundExtremes returns the leftmost and rightmost dark pixel of every
// row. Their convex hull equals the hull of all dark pixels.
func foregroundExtremes(g *image.Gray, t uint8) []utils.Point {
	b := g.Bounds()
	pts := make([]utils.Point, 0, 2*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, y):g.PixOffset(b.Max.X, y)]
		first, last := -1, -1
		for x, v := range row {
			if v <= t {
				if first < 0 {
					first = x
				}
				last = x
			}
		}
		if first < 0 {
			continue
		}
		fy := float64(y - b.Min.Y)
		pts = append(pts, utils.Point{X: float64(first), Y: fy})
		if last != first {
			pts = append(pts, utils.Point{X: float64(last), Y: fy})
		}
	}
	return pts
}

// Deskew rotates g by its estimated correction angle. Rotations smaller than
// minAngle degrees are skipped and g is returned unchanged. The applied
// angle is returned alongside the image.
func Deskew(g *image.Gray, minAngle float64) (*image.Gray, float64) {
	angle, ok := SkewAngle(g)
	if !ok || math.Abs(angle) < minAngle {
		return g, 0
	}
	return Rotate(g, angle), angle
}

// Rotate turns g by angle degrees about its centre using Catmull-Rom
// (cubic) interpolation. Content at edge angle φ ends up at φ+angle.
// Pixels sampled from outside g replicate the nearest edge pixel.
func Rotate(g *image.Gray, angle float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	rad := angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)

	// Largest source displacement of any destination pixel, plus kernel support.
	diag := math.Hypot(float64(w), float64(h))
	margin := int(math.Ceil(2*math.Abs(math.Sin(rad/2))*diag/2)) + 3
	src := padReplicate(g, margin)

	cx, cy := float64(w)/2, float64(h)/2
	px, py := cx+float64(margin), cy+float64(margin)
	s2d := f64.Aff3{
		cos, -sin, cx - (cos*px - sin*py),
		sin, cos, cy - (sin*px + cos*py),
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), g, b.Min, draw.Src)
	draw.CatmullRom.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
	return dst
}

// padReplicate surrounds g with m pixels copied from its nearest edge.
func padReplicate(g *image.Gray, m int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w+2*m, h+2*m))
	for y := range h + 2*m {
		sy := min(max(y-m, 0), h-1) + b.Min.Y
		srcRow := g.Pix[g.PixOffset(b.Min.X, sy):g.PixOffset(b.Max.X, sy)]
		dstRow := out.Pix[y*out.Stride : y*out.Stride+w+2*m]
		left, right := srcRow[0], srcRow[w-1]
		for x := range m {
			dstRow[x] = left
			dstRow[m+w+x] = right
		}
		copy(dstRow[m:m+w], srcRow)
	}
	return out
}
