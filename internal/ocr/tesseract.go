package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// Config holds configuration for the Tesseract engine.
type Config struct {
	Languages   []string      // Tesseract language codes, tried in order
	PageSegMode int           // Tesseract page segmentation mode (6 = single block)
	Timeout     time.Duration // Per-call timeout (0 = only the caller's deadline)
	PoolSize    int           // Number of reusable clients (0 = GOMAXPROCS)
	Whitelist   string        // Optional character whitelist
	DataPath    string        // Optional tessdata directory
}

// DefaultConfig returns the engine defaults for Indonesian/English labels.
func DefaultConfig() Config {
	return Config{
		Languages:   []string{"ind", "eng"},
		PageSegMode: int(gosseract.PSM_SINGLE_BLOCK),
		Timeout:     30 * time.Second,
		PoolSize:    0,
	}
}

// Tesseract recognizes text with a pool of gosseract clients.
type Tesseract struct {
	config Config
	pool   chan *gosseract.Client
}

// NewTesseract creates the client pool.
func NewTesseract(config Config) (*Tesseract, error) {
	if len(config.Languages) == 0 {
		return nil, errors.New("at least one OCR language is required")
	}
	size := config.PoolSize
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}

	t := &Tesseract{config: config, pool: make(chan *gosseract.Client, size)}
	for range size {
		client, err := t.newClient()
		if err != nil {
			_ = t.Close()
			return nil, err
		}
		t.pool <- client
	}
	slog.Debug("Tesseract pool ready", "clients", size, "languages", config.Languages, "version", gosseract.Version())
	return t, nil
}

func (t *Tesseract) newClient() (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if t.config.DataPath != "" {
		client.TessdataPrefix = t.config.DataPath
	}
	if err := client.SetLanguage(t.config.Languages...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(t.config.PageSegMode)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if t.config.Whitelist != "" {
		if err := client.SetWhitelist(t.config.Whitelist); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	return client, nil
}

// Recognize runs Tesseract on img and returns one Line per text line.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]Line, error) {
	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	buf, err := utils.EncodePNG(img)
	if err != nil {
		return nil, &RecognitionError{Engine: "tesseract", Err: err}
	}

	var client *gosseract.Client
	select {
	case client = <-t.pool:
	case <-ctx.Done():
		return nil, t.ctxErr(ctx)
	}

	type result struct {
		lines []Line
		err   error
	}
	done := make(chan result, 1)
	go func() {
		// The client goes back only once the engine has let go of it.
		defer func() { t.pool <- client }()
		lines, err := recognizeWith(client, buf)
		done <- result{lines, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &RecognitionError{Engine: "tesseract", Err: r.err}
		}
		return r.lines, nil
	case <-ctx.Done():
		return nil, t.ctxErr(ctx)
	}
}

func recognizeWith(client *gosseract.Client, png []byte) ([]Line, error) {
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, err
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Text:       text,
			Box:        utils.BoxFromRect(b.Box),
			Confidence: b.Confidence / 100,
		})
	}
	return lines, nil
}

func (t *Tesseract) ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{After: t.config.Timeout}
	}
	return ctx.Err()
}

// Close releases the pooled clients. Call it once no Recognize call is in
// flight.
func (t *Tesseract) Close() error {
	var errs []error
	for {
		select {
		case c := <-t.pool:
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}
