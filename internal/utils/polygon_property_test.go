package utils

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genPoint() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
	).Map(func(vals []interface{}) Point {
		return Point{X: vals[0].(float64), Y: vals[1].(float64)}
	})
}

// TestMinimumAreaRectangle_ContainsAllPoints checks every input point lies
// inside (or on) the returned rectangle.
func TestMinimumAreaRectangle_ContainsAllPoints(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rectangle encloses input", prop.ForAll(
		func(points []Point) bool {
			rect := MinimumAreaRectangle(points)
			if len(ConvexHull(points)) < 3 {
				return true
			}
			ux, uy := rect[1].X-rect[0].X, rect[1].Y-rect[0].Y
			vx, vy := rect[3].X-rect[0].X, rect[3].Y-rect[0].Y
			lu := ux*ux + uy*uy
			lv := vx*vx + vy*vy
			const eps = 1e-6
			for _, p := range points {
				dx, dy := p.X-rect[0].X, p.Y-rect[0].Y
				s := (dx*ux + dy*uy) / lu
				t := (dx*vx + dy*vy) / lv
				if s < -eps || s > 1+eps || t < -eps || t > 1+eps {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(12, genPoint()),
	))

	properties.TestingRun(t)
}

// TestMinimumAreaRectangle_NoLargerThanAABB checks the rotated rectangle never
// exceeds the axis-aligned bounding box area.
func TestMinimumAreaRectangle_NoLargerThanAABB(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("area <= bounding box area", prop.ForAll(
		func(points []Point) bool {
			if len(ConvexHull(points)) < 3 {
				return true
			}
			rect := MinimumAreaRectangle(points)
			w := math.Hypot(rect[1].X-rect[0].X, rect[1].Y-rect[0].Y)
			h := math.Hypot(rect[3].X-rect[0].X, rect[3].Y-rect[0].Y)

			minX, minY := math.Inf(1), math.Inf(1)
			maxX, maxY := math.Inf(-1), math.Inf(-1)
			for _, p := range points {
				minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
				minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
			}
			return w*h <= (maxX-minX)*(maxY-minY)+1e-6
		},
		gen.SliceOfN(12, genPoint()),
	))

	properties.TestingRun(t)
}
