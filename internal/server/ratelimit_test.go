package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMinute, perHour, perDay int, dataPerDay int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perHour, perDay, dataPerDay)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_MinuteWindow(t *testing.T) {
	rl, clock := newTestLimiter(2, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("a", 0))
	clock.advance(20 * time.Second)
	require.NoError(t, rl.CheckRateLimit("a", 0))

	err := rl.CheckRateLimit("a", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 40*time.Second, rle.RetryAfter)

	// Steady traffic still gets a fresh window once the minute is over.
	clock.advance(40 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimiter_HourWindow(t *testing.T) {
	rl, clock := newTestLimiter(0, 3, 0, 0)
	for range 3 {
		require.NoError(t, rl.CheckRateLimit("a", 0))
		clock.advance(10 * time.Minute)
	}
	var rle *RateLimitError
	require.ErrorAs(t, rl.CheckRateLimit("a", 0), &rle)
	assert.Equal(t, "hour", rle.Type)
	assert.Equal(t, 30*time.Minute, rle.RetryAfter)

	clock.advance(30 * time.Minute)
	assert.NoError(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	rl, clock := newTestLimiter(0, 0, 2, 0)
	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("a", 0))

	var qe *QuotaExceededError
	require.ErrorAs(t, rl.CheckRateLimit("a", 0), &qe)
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(2), qe.Used)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), qe.Resets)

	clock.advance(15 * time.Hour)
	assert.NoError(t, rl.CheckRateLimit("a", 0), "quota resets at midnight")
}

func TestRateLimiter_DataQuota(t *testing.T) {
	rl, _ := newTestLimiter(0, 0, 0, 100)
	require.NoError(t, rl.CheckRateLimit("a", 60))

	var qe *QuotaExceededError
	require.ErrorAs(t, rl.CheckRateLimit("a", 50), &qe)
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(60), qe.Used)

	// Rejected requests are not counted.
	require.NoError(t, rl.CheckRateLimit("a", 40))
	assert.Equal(t, int64(100), rl.GetUsage("a").DataToday)
	assert.Equal(t, 2, rl.GetUsage("a").RequestsToday)
}

func TestRateLimiter_PrunesIdleClients(t *testing.T) {
	rl, clock := newTestLimiter(10, 0, 0, 0)
	require.NoError(t, rl.CheckRateLimit("old", 0))

	clock.advance(26 * time.Hour)
	require.NoError(t, rl.CheckRateLimit("new", 0))

	assert.Equal(t, UserUsage{}, rl.GetUsage("old"))
	assert.Equal(t, 1, rl.GetUsage("new").RequestsThisMinute)
}

func TestRateLimitErrorMessages(t *testing.T) {
	err := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 30 * time.Second}
	assert.Equal(t, "rate limit exceeded for minute (limit: 5, retry after: 30s)", err.Error())

	qe := &QuotaExceededError{Type: "data", Limit: 10, Used: 12, Resets: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "quota exceeded for data (used: 12, limit: 10, resets: 2026-01-02T00:00:00Z)", qe.Error())
}
