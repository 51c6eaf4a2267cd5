// Package ocr wraps optical character recognition engines behind a small
// interface so the pipeline can treat them as opaque collaborators.
package ocr

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/utils"
)

// Line is one recognized text line in image coordinates.
type Line struct {
	Text       string    `json:"text"`
	Box        utils.Box `json:"box"`
	Confidence float64   `json:"confidence"`
}

// Recognizer turns an image into text lines. Implementations must be safe
// for concurrent use and must honor ctx.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]Line, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, img image.Image) ([]Line, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, img image.Image) ([]Line, error) {
	return f(ctx, img)
}

// EmptyResultError means the engine ran but produced no text.
type EmptyResultError struct{}

func (e *EmptyResultError) Error() string { return "ocr produced no text" }

// TimeoutError means recognition did not finish within its deadline.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("ocr timed out after %s", e.After)
	}
	return "ocr timed out"
}

// RecognitionError wraps an engine failure.
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s recognition failed: %v", e.Engine, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// IsEmpty reports whether err is an EmptyResultError.
func IsEmpty(err error) bool {
	var e *EmptyResultError
	return errors.As(err, &e)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// JoinLines orders lines top-to-bottom, then left-to-right, and joins their
// trimmed text with newlines. Blank lines are dropped.
func JoinLines(lines []Line) string {
	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, b Line) int {
		if c := cmp.Compare(a.Box.MinY, b.Box.MinY); c != 0 {
			return c
		}
		return cmp.Compare(a.Box.MinX, b.Box.MinX)
	})
	parts := make([]string, 0, len(sorted))
	for _, l := range sorted {
		if t := strings.TrimSpace(l.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// MeanConfidence averages line confidences, or returns 0 for no lines.
func MeanConfidence(lines []Line) float64 {
	if len(lines) == 0 {
		return 0
	}
	var sum float64
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float64(len(lines))
}

// Offset shifts every line box by (dx, dy).
func Offset(lines []Line, dx, dy float64) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		l.Box = l.Box.Offset(dx, dy)
		out[i] = l
	}
	return out
}
