package preprocess

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_LabelLikeImage(t *testing.T) {
	img := newPaper(400, 240)
	fillRect(img, image.Rect(20, 30, 300, 60), 15)
	fillRect(img, image.Rect(20, 120, 260, 150), 15)

	p := New(DefaultConfig())
	res, err := p.Process(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Blocks, 2)
	assert.Less(t, res.Blocks[0].Y, res.Blocks[1].Y)
	assert.NotNil(t, res.Blocks[0].Region)
	assert.Equal(t, img.Bounds(), res.Binary.Bounds())
}

func TestProcess_InvalidImage(t *testing.T) {
	p := New(DefaultConfig())
	var invalid *InvalidImageError

	_, err := p.Process(context.Background(), nil)
	require.ErrorAs(t, err, &invalid)

	_, err = p.Process(context.Background(), image.NewGray(image.Rectangle{}))
	require.ErrorAs(t, err, &invalid)
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultConfig()).Process(ctx, newPaper(100, 100))
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcess_Deterministic(t *testing.T) {
	img := newPaper(300, 200)
	fillRotatedRect(img, 150, 100, 200, 40, 4, 20)

	p := New(DefaultConfig())
	a, err := p.Process(context.Background(), img)
	require.NoError(t, err)
	b, err := p.Process(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, a.Angle, b.Angle)
	assert.Equal(t, a.Binary.Pix, b.Binary.Pix)
	assert.Len(t, b.Blocks, len(a.Blocks))
}
