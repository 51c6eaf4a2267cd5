package testutil

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabelOptions controls synthetic nutrition label rendering.
type LabelOptions struct {
	Width      int // Canvas width before rotation (0 = fit text)
	Margin     int
	Scale      int     // Integer upscale of the 7x13 bitmap font
	LineGap    int     // Extra pixels between lines, before scaling
	Rotation   float64 // Counter-clockwise degrees
	Background color.Color
	Foreground color.Color
	Noise      float64 // Fraction of pixels to flip (0 = clean)
}

// DefaultLabelOptions renders black text on white at 3x scale.
func DefaultLabelOptions() LabelOptions {
	return LabelOptions{
		Margin:     40,
		Scale:      3,
		LineGap:    4,
		Background: color.White,
		Foreground: color.Black,
	}
}

// RenderLabel draws lines of text as a label photo stand-in.
func RenderLabel(lines []string, opts LabelOptions) *image.RGBA {
	face := basicfont.Face7x13
	scale := max(opts.Scale, 1)
	lineHeight := face.Metrics().Height.Ceil() + opts.LineGap

	textWidth := 0
	for _, l := range lines {
		textWidth = max(textWidth, font.MeasureString(face, l).Ceil())
	}
	w := textWidth + 2
	h := max(len(lines)*lineHeight, 1) + 2

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), &image.Uniform{opts.Background}, image.Point{}, draw.Src)
	drawer := &font.Drawer{Dst: small, Src: &image.Uniform{opts.Foreground}, Face: face}
	for i, l := range lines {
		drawer.Dot = fixed.P(1, (i+1)*lineHeight-opts.LineGap)
		drawer.DrawString(l)
	}

	text := imaging.Resize(small, w*scale, h*scale, imaging.NearestNeighbor)
	canvasW := max(opts.Width, text.Bounds().Dx()+2*opts.Margin)
	canvasH := text.Bounds().Dy() + 2*opts.Margin
	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{opts.Background}, image.Point{}, draw.Src)
	draw.Draw(canvas, text.Bounds().Add(image.Pt(opts.Margin, opts.Margin)), text, image.Point{}, draw.Src)

	out := canvas
	if opts.Rotation != 0 {
		rotated := imaging.Rotate(canvas, opts.Rotation, opts.Background)
		out = image.NewRGBA(rotated.Bounds())
		draw.Draw(out, out.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
	}
	if opts.Noise > 0 {
		addNoise(out, opts.Noise)
	}
	return out
}

// addNoise inverts a deterministic scatter of pixels.
func addNoise(img *image.RGBA, level float64) {
	period := int(1 / level)
	if period < 1 {
		period = 1
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if (x*31+y*17)%period != 0 {
				continue
			}
			off := img.PixOffset(x, y)
			for c := range 3 {
				img.Pix[off+c] = 255 - img.Pix[off+c]
			}
		}
	}
}
