package preprocess

import (
	"context"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/nutrigood/internal/utils"
)

// Config holds preprocessing settings.
type Config struct {
	Deskew            bool
	MinDeskewAngle    float64
	MaxImageDimension int
	Segment           SegmentOptions
}

// DefaultConfig returns the default preprocessing configuration.
func DefaultConfig() Config {
	return Config{
		Deskew:            true,
		MinDeskewAngle:    0.1,
		MaxImageDimension: utils.DefaultImageConstraints().MaxDimension,
		Segment:           DefaultSegmentOptions(),
	}
}

// Result carries every intermediate product of preprocessing.
type Result struct {
	Gray      *image.Gray
	Binary    *image.Gray
	Threshold uint8
	Angle     float64
	Blocks    []TextBlock
}

// Preprocessor runs the preprocessing stages. It holds no mutable state and
// is safe for concurrent use.
type Preprocessor struct {
	cfg Config
}

// New creates a Preprocessor.
func New(cfg Config) *Preprocessor {
	return &Preprocessor{cfg: cfg}
}

// Config returns the preprocessor configuration.
func (p *Preprocessor) Config() Config { return p.cfg }

// Process runs grayscale, deskew, binarize and segmentation on img.
// Cancellation of ctx is checked between stages.
func (p *Preprocessor) Process(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &InvalidImageError{Reason: "image is empty"}
	}
	img = utils.FitWithin(img, p.cfg.MaxImageDimension)

	gray, err := ToGrayscale(img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Gray: gray}
	if p.cfg.Deskew {
		res.Gray, res.Angle = Deskew(gray, p.cfg.MinDeskewAngle)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	res.Binary, res.Threshold = Binarize(res.Gray)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Blocks = SegmentTextBlocks(res.Binary, res.Gray, p.cfg.Segment)
	slog.Debug("Preprocessed image",
		"width", res.Gray.Bounds().Dx(),
		"height", res.Gray.Bounds().Dy(),
		"angle", res.Angle,
		"threshold", res.Threshold,
		"blocks", len(res.Blocks))
	return res, nil
}
