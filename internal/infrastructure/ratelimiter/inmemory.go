package ratelimiter

import (
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

type bucketEntry struct {
	value    int
	deadline time.Time // zero never expires
}

func (e bucketEntry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && !now.Before(e.deadline)
}

// InMemory keeps bucket state for a single broadcast server. Expired entries
// are dropped when read and by a background sweep, so buckets released when
// a socket disconnects do not pile up.
type InMemory struct {
	now   func() time.Time
	every time.Duration

	mu      sync.Mutex
	entries map[string]bucketEntry

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type InMemoryOption func(*InMemory)

// WithSweepInterval sets how often expired entries are purged. A
// non-positive interval disables the sweep; entries then go on read only.
func WithSweepInterval(every time.Duration) InMemoryOption {
	return func(s *InMemory) {
		s.every = every
	}
}

func WithStoreClock(now func() time.Time) InMemoryOption {
	return func(s *InMemory) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInMemory(opts ...InMemoryOption) *InMemory {
	s := &InMemory{
		now:     time.Now,
		every:   defaultSweepInterval,
		entries: make(map[string]bucketEntry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.every > 0 {
		go s.run()
	} else {
		close(s.done)
	}
	return s
}

func (s *InMemory) Get(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, ErrCacheMiss
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return 0, ErrCacheMiss
	}
	return e.value, nil
}

func (s *InMemory) Set(key string, value int) error {
	return s.SetWithExpiration(key, value, 0)
}

func (s *InMemory) SetWithExpiration(key string, value int, expiration time.Duration) error {
	e := bucketEntry{value: value}
	if expiration > 0 {
		e.deadline = s.now().Add(expiration)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *InMemory) Delete(keys ...string) error {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return nil
}

// Len counts live entries.
func (s *InMemory) Len() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func (s *InMemory) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep purges expired entries and returns how many it removed.
func (s *InMemory) sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Close stops the sweep and waits for it to exit.
func (s *InMemory) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return nil
}
