package ocr

import (
	"context"
	"encoding/binary"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/utils"
	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long recognized lines stay cached.
const DefaultCacheTTL = 5 * time.Minute

// CacheStats holds cache counters.
type CacheStats struct {
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	SingleflightHits uint64 `json:"singleflight_hits"`
	Items            int    `json:"items"`
}

// Cached memoizes a Recognizer by image content. Identical concurrent
// requests share one engine call.
type Cached struct {
	next  Recognizer
	name  string
	cache *ttlcache.Cache[uint64, []Line]
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	shared atomic.Uint64
}

// NewCached wraps next. The returned cache runs an expiry goroutine until
// Close is called.
func NewCached(next Recognizer, name string, ttl time.Duration, capacity uint64) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	opts := []ttlcache.Option[uint64, []Line]{ttlcache.WithTTL[uint64, []Line](ttl)}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[uint64, []Line](capacity))
	}
	c := &Cached{next: next, name: name, cache: ttlcache.New(opts...)}
	go c.cache.Start()
	return c
}

// Recognize returns cached lines for img or calls the wrapped recognizer.
// Errors are never cached, and neither are images whose content cannot be
// hashed.
func (c *Cached) Recognize(ctx context.Context, img image.Image) ([]Line, error) {
	key, ok := c.key(img)
	if !ok {
		c.misses.Add(1)
		return c.next.Recognize(ctx, img)
	}
	if item := c.cache.Get(key); item != nil {
		c.hits.Add(1)
		return cloneLines(item.Value()), nil
	}

	v, err, shared := c.group.Do(string(binary.BigEndian.AppendUint64(nil, key)), func() (any, error) {
		c.misses.Add(1)
		start := time.Now()
		lines, err := c.next.Recognize(ctx, img)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, lines, ttlcache.DefaultTTL)
		slog.Debug("OCR result cached", "engine", c.name, "lines", len(lines), "duration", time.Since(start))
		return lines, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.shared.Add(1)
	}
	return cloneLines(v.([]Line)), nil
}

// key hashes the engine name, bounds and pixels of img. ok is false when the
// pixels could not be read, since bounds alone would collide.
func (c *Cached) key(img image.Image) (key uint64, ok bool) {
	h := xxhash.New()
	_, _ = h.WriteString(c.name)
	b := img.Bounds()
	var dims [16]byte
	binary.BigEndian.PutUint32(dims[0:4], uint32(b.Min.X))
	binary.BigEndian.PutUint32(dims[4:8], uint32(b.Min.Y))
	binary.BigEndian.PutUint32(dims[8:12], uint32(b.Max.X))
	binary.BigEndian.PutUint32(dims[12:16], uint32(b.Max.Y))
	_, _ = h.Write(dims[:])

	switch m := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := m.PixOffset(b.Min.X, y)
			_, _ = h.Write(m.Pix[off : off+b.Dx()])
		}
	default:
		buf, err := utils.EncodePNG(img)
		if err != nil {
			slog.Debug("OCR cache bypassed", "engine", c.name, "error", err)
			return 0, false
		}
		_, _ = h.Write(buf)
	}
	return h.Sum64(), true
}

// Stats returns a snapshot of the cache counters.
func (c *Cached) Stats() CacheStats {
	return CacheStats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		SingleflightHits: c.shared.Load(),
		Items:            c.cache.Len(),
	}
}

// Close stops the expiry goroutine. The wrapped recognizer is not closed.
func (c *Cached) Close() error {
	c.cache.Stop()
	return nil
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
