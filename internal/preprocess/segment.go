package preprocess

import (
	"cmp"
	"image"
	"slices"

	"github.com/MeKo-Tech/nutrigood/internal/utils"
)

// TextBlock is a candidate text region in reading order.
type TextBlock struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`

	// Region is the block cropped from the deskewed grayscale page,
	// including SegmentOptions.Padding.
	Region *image.Gray `json:"-"`
}

// Rect returns the block rectangle in page coordinates.
func (b TextBlock) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// SegmentOptions controls text-block segmentation.
type SegmentOptions struct {
	MinWidth     int
	MinHeight    int
	MergeKernelW int
	MergeKernelH int
	Padding      int
}

// DefaultSegmentOptions returns the defaults used for label photos.
func DefaultSegmentOptions() SegmentOptions {
	return SegmentOptions{
		MinWidth:     50,
		MinHeight:    20,
		MergeKernelW: 15,
		MergeKernelH: 5,
		Padding:      4,
	}
}

// SegmentTextBlocks finds text regions in an inverted binary image.
//
// Foreground is optionally dilated so glyphs on a line merge into 8-connected
// components. Each block is the extent of the undilated pixels of one
// component, so dilation joins glyphs without growing them. Boxes lying inside
// another qualifying box are dropped (outermost regions only), boxes not
// strictly larger than MinWidth×MinHeight are discarded, and the remainder is
// sorted by top then left edge. page supplies the pixels for each Region; it
// may be nil, in which case Region is left empty.
func SegmentTextBlocks(binary, page *image.Gray, opts SegmentOptions) []TextBlock {
	mask := binary
	if opts.MergeKernelW > 1 || opts.MergeKernelH > 1 {
		mask = Dilate(binary, opts.MergeKernelW, opts.MergeKernelH)
	}

	var rects []image.Rectangle
	for _, c := range connectedComponents(mask, binary) {
		if c.inkCount == 0 {
			continue
		}
		r := image.Rect(c.inkMinX, c.inkMinY, c.inkMaxX+1, c.inkMaxY+1)
		if r.Dx() > opts.MinWidth && r.Dy() > opts.MinHeight {
			rects = append(rects, r)
		}
	}
	rects = outermost(rects)

	slices.SortStableFunc(rects, func(a, b image.Rectangle) int {
		if c := cmp.Compare(a.Min.Y, b.Min.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.Min.X, b.Min.X)
	})

	blocks := make([]TextBlock, 0, len(rects))
	for _, r := range rects {
		blk := TextBlock{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
		if page != nil {
			pad := image.Rect(r.Min.X-opts.Padding, r.Min.Y-opts.Padding, r.Max.X+opts.Padding, r.Max.Y+opts.Padding)
			blk.Region = utils.CropGray(page, pad.Add(page.Bounds().Min))
		}
		blocks = append(blocks, blk)
	}
	return blocks
}

// outermost drops rectangles contained in another rectangle of the set.
// Of two identical rectangles the first is kept.
func outermost(rects []image.Rectangle) []image.Rectangle {
	out := rects[:0:0]
	for i, r := range rects {
		inside := false
		for j, q := range rects {
			if i == j || !r.In(q) {
				continue
			}
			if r != q || j < i {
				inside = true
				break
			}
		}
		if !inside {
			out = append(out, r)
		}
	}
	return out
}

type compStats struct {
	count                  int
	minX, minY, maxX, maxY int
	// Extent of the component's pixels that are also foreground in ink.
	inkCount                           int
	inkMinX, inkMinY, inkMaxX, inkMaxY int
}

// connectedComponents flood-fills 8-connected foreground pixels of mask and
// returns per-component bounding statistics in scan order. ink must have
// mask's size; its origin may differ.
func connectedComponents(mask, ink *image.Gray) []compStats {
	b, ib := mask.Bounds(), ink.Bounds()
	w, h := b.Dx(), b.Dy()
	fg := func(x, y int) bool { return mask.Pix[mask.PixOffset(b.Min.X+x, b.Min.Y+y)] != background }
	inked := func(x, y int) bool { return ink.Pix[ink.PixOffset(ib.Min.X+x, ib.Min.Y+y)] != background }

	visited := make([]bool, w*h)
	var comps []compStats
	queue := make([]int, 0, 64)

	for y := range h {
		for x := range w {
			idx := y*w + x
			if visited[idx] || !fg(x, y) {
				continue
			}
			st := compStats{minX: x, minY: y, maxX: x, maxY: y}
			visited[idx] = true
			queue = append(queue[:0], idx)
			for len(queue) > 0 {
				ci := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				cx, cy := ci%w, ci/w
				st.count++
				st.minX, st.maxX = min(st.minX, cx), max(st.maxX, cx)
				st.minY, st.maxY = min(st.minY, cy), max(st.maxY, cy)
				if inked(cx, cy) {
					if st.inkCount == 0 {
						st.inkMinX, st.inkMaxX, st.inkMinY, st.inkMaxY = cx, cx, cy, cy
					}
					st.inkCount++
					st.inkMinX, st.inkMaxX = min(st.inkMinX, cx), max(st.inkMaxX, cx)
					st.inkMinY, st.inkMaxY = min(st.inkMinY, cy), max(st.inkMaxY, cy)
				}
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := cx+dx, cy+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						ni := ny*w + nx
						if !visited[ni] && fg(nx, ny) {
							visited[ni] = true
							queue = append(queue, ni)
						}
					}
				}
			}
			comps = append(comps, st)
		}
	}
	return comps
}
