package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/common"
	"github.com/MeKo-Tech/nutrigood/internal/ocr"
	"github.com/MeKo-Tech/nutrigood/internal/preprocess"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/MeKo-Tech/nutrigood/internal/utils"
	"github.com/google/uuid"
)

// SourceText names reports produced from raw text.
const SourceText = "text"

// Process analyzes a label image.
//
// The returned report is never nil. A non-nil error means the analysis was
// fatal (invalid image, OCR timeout or total OCR failure, cancellation) and
// the report carries message "Error" and an empty nutrition_info.
func (p *Pipeline) Process(ctx context.Context, img image.Image, attrs classifier.Attributes) (*report.Report, error) {
	return p.processImage(ctx, "", img, attrs)
}

// ProcessFile loads path and analyzes it.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, attrs classifier.Attributes) (*report.Report, error) {
	timer := common.NewNamedTimer("load")
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		err = &preprocess.InvalidImageError{Reason: "cannot load " + path, Err: err}
		return report.Failed(path, err, timer.Stop()), err
	}
	slog.Debug("Loaded image", "path", path, "format", meta.Format, "width", meta.Width, "height", meta.Height)
	return p.processImage(ctx, path, img, attrs)
}

// ProcessText analyzes already-recognized text, skipping the image stages.
func (p *Pipeline) ProcessText(ctx context.Context, text string, attrs classifier.Attributes) (*report.Report, error) {
	timer := common.NewNamedTimer("text")
	if err := ctx.Err(); err != nil {
		return report.Failed(SourceText, err, timer.Stop()), err
	}
	return p.analyze(ctx, timer, analysisInput{source: SourceText, text: text, attrs: attrs})
}

type analysisInput struct {
	source string
	text   string
	attrs  classifier.Attributes
	angle      float64
	blocks     int
	confidence float64
}

func (p *Pipeline) processImage(ctx context.Context, source string, img image.Image, attrs classifier.Attributes) (*report.Report, error) {
	if p == nil || p.Preprocessor == nil || p.Recognizer == nil || p.Engine == nil {
		err := errors.New("pipeline not initialized")
		return report.Failed(source, err, 0), err
	}
	timer := common.NewNamedTimer("process")

	pre, err := p.Preprocessor.Process(ctx, img)
	if err != nil {
		return report.Failed(source, err, timer.Stop()), err
	}

	lines, err := p.recognize(ctx, pre)
	if err != nil {
		return report.Failed(source, err, timer.Stop()), err
	}
	return p.analyze(ctx, timer, analysisInput{
		source:     source,
		text:       ocr.JoinLines(lines),
		attrs:      attrs,
		angle:      pre.Angle,
		blocks:     len(pre.Blocks),
		confidence: ocr.MeanConfidence(lines),
	})
}

// recognize runs OCR per text block, mapping line boxes back to page
// coordinates. When nothing is read it retries once on the whole page.
// Block failures are tolerated unless the retry fails too.
func (p *Pipeline) recognize(ctx context.Context, pre *preprocess.Result) ([]ocr.Line, error) {
	var lines []ocr.Line
	var lastErr error
	failed := 0
	pad := p.cfg.Preprocess.Segment.Padding

	for i, blk := range pre.Blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := p.Recognizer.Recognize(ctx, blk.Region)
		if err != nil && !ocr.IsEmpty(err) {
			if ocr.IsTimeout(err) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			slog.Debug("Block recognition failed", "block", i, "error", err)
			lastErr = err
			failed++
			continue
		}
		dx, dy := float64(max(blk.X-pad, 0)), float64(max(blk.Y-pad, 0))
		lines = append(lines, ocr.Offset(got, dx, dy)...)
	}

	if ocr.JoinLines(lines) != "" || !p.cfg.FullPageFallback {
		if len(pre.Blocks) > 0 && failed == len(pre.Blocks) {
			return nil, &ocr.RecognitionError{Engine: p.recognizerName(), Err: lastErr}
		}
		return lines, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slog.Debug("No text in blocks, retrying on full page", "blocks", len(pre.Blocks))
	page, err := p.Recognizer.Recognize(ctx, pre.Gray)
	switch {
	case err == nil || ocr.IsEmpty(err):
		return page, nil
	case ocr.IsTimeout(err) || errors.Is(err, context.Canceled):
		return nil, err
	case failed == len(pre.Blocks):
		return nil, &ocr.RecognitionError{Engine: p.recognizerName(), Err: err}
	default:
		slog.Debug("Full-page recognition failed", "error", err)
		return lines, nil
	}
}

func (p *Pipeline) recognizerName() string { return fmt.Sprintf("%T", p.Recognizer) }

// analyze runs extraction, classification and report assembly on text.
func (p *Pipeline) analyze(ctx context.Context, timer *common.Timer, in analysisInput) (*report.Report, error) {
	a, err := p.Engine.Analyze(in.text)
	if err != nil {
		return report.Failed(in.source, err, timer.Stop()), err
	}
	if err := ctx.Err(); err != nil {
		return report.Failed(in.source, err, timer.Stop()), err
	}

	var warnings []string
	var analysis *classifier.Analysis
	if p.Predictor != nil {
		f, err := classifier.FeaturesFromResult(a.Result, in.attrs)
		switch {
		case errors.Is(err, classifier.ErrMissingSugar):
		case err != nil:
			warnings = append(warnings, "classifier: "+err.Error())
		default:
			res, err := classifier.Classify(ctx, p.Predictor, f, p.cfg.ClassifierTimeout, p.cfg.Language)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return report.Failed(in.source, err, timer.Stop()), err
				}
				slog.Warn("Sugar classification failed", "source", in.source, "error", err)
				warnings = append(warnings, "classifier: "+err.Error())
			} else {
				analysis = &res
			}
		}
	}

	r := report.New(report.Input{
		Source:   in.source,
		Result:   a.Result,
		Outcome:  a.Outcome,
		Text:     a.Normalized,
		Analysis: analysis,
		Warnings: warnings,
		Language: p.cfg.Language,
		Elapsed:  timer.Stop(),
	})
	r.ID = uuid.NewString()
	r.DeskewAngle = in.angle
	r.Blocks = in.blocks
	r.OCRConfidence = in.confidence

	if p.cfg.Validate {
		if err := report.Validate(r); err != nil {
			return report.Failed(in.source, err, timer.Duration()), err
		}
	}
	slog.Debug("Analyzed label",
		"source", in.source,
		"outcome", r.Outcome,
		"warnings", len(r.Warnings),
		"duration", timer.Duration())
	return r, nil
}
