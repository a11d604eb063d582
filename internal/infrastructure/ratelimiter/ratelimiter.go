package ratelimiter

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	bucketKeyPrefix   = "rl:bucket:"
	lastFillKeyPrefix = "rl:fill:"
	defaultSourceKey  = "X-RateLimit-Key"
)

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
	Release(sourceKey string)
}

// RateLimiter is a token bucket per source key with state kept in a
// GetterSetter.
type RateLimiter struct {
	maxRatePerMillisecond float64
	maxBurst              int
	cache                 GetterSetter
	cacheTTL              time.Duration
	sourceHeaderKey       string
	now                   func() time.Time

	locks sync.Map // map[string]*sync.Mutex
}

func (rl *RateLimiter) getLock(sourceKey string) *sync.Mutex {
	lock, _ := rl.locks.LoadOrStore(sourceKey, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

type bucketState struct {
	tokens   int
	lastFill int64 // Unix milliseconds
}

func (rl *RateLimiter) getState(sourceKey string, now int64) bucketState {
	bucket, bucketErr := rl.cache.Get(bucketKeyPrefix + sourceKey)
	lastFill, fillErr := rl.cache.Get(lastFillKeyPrefix + sourceKey)

	// a miss starts a full bucket; so does a store error (fail open)
	if bucketErr != nil || fillErr != nil {
		return bucketState{
			tokens:   rl.maxBurst,
			lastFill: now,
		}
	}

	return bucketState{
		tokens:   bucket,
		lastFill: int64(lastFill),
	}
}

func (rl *RateLimiter) setState(sourceKey string, state bucketState) {
	rl.setStateFor(sourceKey, state, rl.cacheTTL)
}

func (rl *RateLimiter) setStateFor(sourceKey string, state bucketState, ttl time.Duration) {
	_ = rl.cache.SetWithExpiration(bucketKeyPrefix+sourceKey, state.tokens, ttl)
	_ = rl.cache.SetWithExpiration(lastFillKeyPrefix+sourceKey, int(state.lastFill), ttl)
}

// refillTokens adds whole tokens for the elapsed time. lastFill advances only
// by the time those tokens account for, so partial progress carries over.
func (rl *RateLimiter) refillTokens(state bucketState, now int64) bucketState {
	elapsed := now - state.lastFill
	if elapsed <= 0 || rl.maxRatePerMillisecond <= 0 {
		return state
	}

	whole := math.Floor(float64(elapsed) * rl.maxRatePerMillisecond)
	if whole < 1 {
		return state
	}

	tokens := float64(state.tokens) + whole
	if tokens >= float64(rl.maxBurst) {
		return bucketState{
			tokens:   rl.maxBurst,
			lastFill: now,
		}
	}

	return bucketState{
		tokens:   int(tokens),
		lastFill: state.lastFill + int64(whole/rl.maxRatePerMillisecond),
	}
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	now := rl.now().UnixMilli()
	state := rl.getState(sourceKey, now)
	newState := rl.refillTokens(state, now)

	if newState != state {
		rl.setState(sourceKey, newState)
	}

	return newState.tokens
}

// Release marks sourceKey idle, for example once its socket disconnected.
// The stored bucket is kept only until it would have refilled, after which a
// miss means the same thing: a full bucket.
func (rl *RateLimiter) Release(sourceKey string) {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	now := rl.now().UnixMilli()
	state := rl.refillTokens(rl.getState(sourceKey, now), now)

	missing := rl.maxBurst - state.tokens
	full := state.lastFill + int64(math.Ceil(float64(missing)/rl.maxRatePerMillisecond))
	ttl := time.Duration(full-now) * time.Millisecond

	if missing <= 0 || ttl <= 0 {
		_ = rl.cache.Delete(bucketKeyPrefix+sourceKey, lastFillKeyPrefix+sourceKey)
		return
	}

	rl.setStateFor(sourceKey, state, min(ttl, rl.cacheTTL))
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	now := rl.now().UnixMilli()
	state := rl.getState(sourceKey, now)
	newState := rl.refillTokens(state, now)

	if newState.tokens > 0 {
		newState.tokens--
		rl.setState(sourceKey, newState)
		return true
	}

	if newState != state {
		rl.setState(sourceKey, newState)
	}

	return false
}

// GetSourceKey uses the configured header (first entry of a comma separated
// list) and falls back to the remote IP.
func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
		first, _, _ := strings.Cut(key, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            GetterSetter
	CacheTTL         time.Duration
	SourceHeaderKey  string
	Clock            func() time.Time
}

var ErrInvalidRate = errors.New("rate limiter: max rate per second must be positive")

func New(options Options) (*RateLimiter, error) {
	if options.MaxRatePerSecond <= 0 {
		return nil, ErrInvalidRate
	}

	if options.Cache == nil {
		options.Cache = NewInMemory()
	}

	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}

	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}

	if options.SourceHeaderKey == "" {
		options.SourceHeaderKey = defaultSourceKey
	}

	if options.Clock == nil {
		options.Clock = time.Now
	}

	return &RateLimiter{
		maxRatePerMillisecond: float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:              options.MaxBurst,
		cache:                 options.Cache,
		cacheTTL:              options.CacheTTL,
		sourceHeaderKey:       options.SourceHeaderKey,
		now:                   options.Clock,
	}, nil
}

func (rl *RateLimiter) Close() error {
	return rl.cache.Close()
}
