package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecognizer struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingRecognizer) Recognize(_ context.Context, img image.Image) ([]Line, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	if c.err != nil {
		return nil, c.err
	}
	return []Line{{Text: "Sugars 5g", Confidence: 0.9}}, nil
}

func grayImage(v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestCached_HitsAndMisses(t *testing.T) {
	next := &countingRecognizer{}
	c := NewCached(next, "test", time.Minute, 0)
	defer c.Close()
	ctx := context.Background()

	first, err := c.Recognize(ctx, grayImage(10))
	require.NoError(t, err)
	second, err := c.Recognize(ctx, grayImage(10))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), next.calls.Load())

	_, err = c.Recognize(ctx, grayImage(20))
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, 2, stats.Items)
}

func TestCached_UnhashableImageBypassesCache(t *testing.T) {
	next := &countingRecognizer{}
	c := NewCached(next, "test", time.Minute, 0)
	defer c.Close()

	// A zero-size RGBA cannot be PNG-encoded, so its pixels cannot be hashed.
	empty := image.NewRGBA(image.Rectangle{})
	for range 2 {
		lines, err := c.Recognize(context.Background(), empty)
		require.NoError(t, err)
		assert.Len(t, lines, 1)
	}
	assert.Equal(t, int32(2), next.calls.Load())
	assert.Equal(t, 0, c.Stats().Items)
	assert.Equal(t, uint64(0), c.Stats().Hits)
}

func TestCached_NonGrayImages(t *testing.T) {
	next := &countingRecognizer{}
	c := NewCached(next, "test", time.Minute, 0)
	defer c.Close()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	other := image.NewRGBA(image.Rect(0, 0, 4, 4))

	_, err := c.Recognize(context.Background(), img)
	require.NoError(t, err)
	_, err = c.Recognize(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	next := &countingRecognizer{err: errors.New("boom")}
	c := NewCached(next, "test", time.Minute, 0)
	defer c.Close()

	for range 2 {
		_, err := c.Recognize(context.Background(), grayImage(1))
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), next.calls.Load())
	assert.Zero(t, c.Stats().Items)
}

func TestCached_ReturnsCopies(t *testing.T) {
	c := NewCached(&countingRecognizer{}, "test", time.Minute, 0)
	defer c.Close()

	lines, err := c.Recognize(context.Background(), grayImage(3))
	require.NoError(t, err)
	lines[0].Text = "mutated"

	again, err := c.Recognize(context.Background(), grayImage(3))
	require.NoError(t, err)
	assert.Equal(t, "Sugars 5g", again[0].Text)
}

func TestCached_ConcurrentCallsShareWork(t *testing.T) {
	next := &countingRecognizer{delay: 50 * time.Millisecond}
	c := NewCached(next, "test", time.Minute, 0)
	defer c.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Recognize(context.Background(), grayImage(5))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, next.calls.Load(), int32(8))
	assert.GreaterOrEqual(t, next.calls.Load(), int32(1))
	_, err := c.Recognize(context.Background(), grayImage(5))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.Stats().Hits, uint64(1))
}
