package ratelimiter

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, rate, burst int, clock *manualClock) *RateLimiter {
	t.Helper()

	store := NewInMemory()
	rl, err := New(Options{
		MaxRatePerSecond: rate,
		MaxBurst:         burst,
		Cache:            store,
		CacheTTL:         time.Hour,
		Clock:            clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rl.Close() })
	return rl
}

func TestNewRejectsNonPositiveRate(t *testing.T) {
	_, err := New(Options{MaxRatePerSecond: 0})
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestNewDefaults(t *testing.T) {
	rl, err := New(Options{MaxRatePerSecond: 5})
	require.NoError(t, err)
	defer rl.Close()

	assert.Equal(t, 5, rl.GetMaxBurst())
	assert.Equal(t, defaultSourceKey, rl.sourceHeaderKey)
	assert.Equal(t, 10*time.Second, rl.cacheTTL)
}

func TestAllowConsumesBurst(t *testing.T) {
	clock := newManualClock()
	rl := newTestLimiter(t, 1, 3, clock)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client"), "request %d", i)
	}
	assert.False(t, rl.Allow("client"))
	assert.Equal(t, 0, rl.Remaining("client"))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	clock := newManualClock()
	rl := newTestLimiter(t, 1, 1, clock)

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestRefillAddsTokensOverTime(t *testing.T) {
	clock := newManualClock()
	rl := newTestLimiter(t, 10, 5, clock)

	for i := 0; i < 5; i++ {
		require.True(t, rl.Allow("client"))
	}
	require.False(t, rl.Allow("client"))

	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 3, rl.Remaining("client"))
}

func TestRefillNeverExceedsBurst(t *testing.T) {
	clock := newManualClock()
	rl := newTestLimiter(t, 100, 4, clock)

	require.True(t, rl.Allow("client"))
	clock.Advance(time.Minute)
	assert.Equal(t, 4, rl.Remaining("client"))
}

func TestRefillKeepsPartialProgress(t *testing.T) {
	clock := newManualClock()
	// one token every 500ms
	rl := newTestLimiter(t, 2, 1, clock)

	require.True(t, rl.Allow("client"))

	clock.Advance(300 * time.Millisecond)
	assert.False(t, rl.Allow("client"))

	clock.Advance(300 * time.Millisecond)
	assert.True(t, rl.Allow("client"), "600ms elapsed in total should yield a token")
}

func TestGetSourceKey(t *testing.T) {
	clock := newManualClock()
	rl := newTestLimiter(t, 1, 1, clock)
	rl.sourceHeaderKey = "X-Forwarded-For"

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", rl.GetSourceKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", rl.GetSourceKey(req))
}

func TestAllowConcurrent(t *testing.T) {
	clock := newManualClock()
	rl := newTestLimiter(t, 1, 50, clock)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestReleaseKeepsBucketUntilRefilled(t *testing.T) {
	clock := newManualClock()
	store := NewInMemory(WithStoreClock(clock.Now), WithSweepInterval(0))
	rl, err := New(Options{MaxRatePerSecond: 2, MaxBurst: 4, Cache: store, CacheTTL: time.Hour, Clock: clock.Now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rl.Close() })

	for i := 0; i < 4; i++ {
		require.True(t, rl.Allow("ws:user:u1"))
	}
	require.False(t, rl.Allow("ws:user:u1"))

	rl.Release("ws:user:u1")

	// an immediate reconnect still finds the bucket drained
	assert.Equal(t, 2, store.Len())
	assert.False(t, rl.Allow("ws:user:u1"))

	clock.Advance(1999 * time.Millisecond)
	rl.Release("ws:user:u1")
	assert.Equal(t, 2, store.Len())

	clock.Advance(time.Millisecond)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 4, rl.Remaining("ws:user:u1"))
}

func TestReleaseDropsFullBucket(t *testing.T) {
	clock := newManualClock()
	store := NewInMemory(WithStoreClock(clock.Now), WithSweepInterval(0))
	rl, err := New(Options{MaxRatePerSecond: 2, MaxBurst: 4, Cache: store, CacheTTL: time.Hour, Clock: clock.Now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rl.Close() })

	require.True(t, rl.Allow("ws:user:u2"))
	assert.Equal(t, 2, store.Len())

	clock.Advance(time.Second)
	rl.Release("ws:user:u2")
	assert.Equal(t, 0, store.Len())

	rl.Release("ws:user:never-seen")
	assert.Equal(t, 0, store.Len())
}
