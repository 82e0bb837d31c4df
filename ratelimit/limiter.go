package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	DefaultRequests      = 60
	DefaultWindow        = time.Minute
	DefaultMaxIdentities = 100_000
)

// Config holds limiter settings. Zero values fall back to the defaults.
type Config struct {
	Requests      int
	Window        time.Duration
	MaxIdentities int
	Clock         clock.Clock
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a sliding-log rate limiter. Each identity may have at most
// Requests accepted requests in any Window-long interval. Rejected
// requests are not recorded, so a caller regains capacity exactly one
// window after its oldest accepted request.
//
// Buckets are kept in an LRU bounded by MaxIdentities; the least recently
// seen identity is dropped first when the bound is hit.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clock   clock.Clock
	buckets *simplelru.LRU[Identity, []time.Time]
}

func New(cfg Config) (*Limiter, error) {
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxIdentities <= 0 {
		cfg.MaxIdentities = DefaultMaxIdentities
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	buckets, err := simplelru.NewLRU[Identity, []time.Time](cfg.MaxIdentities, nil)
	if err != nil {
		return nil, fmt.Errorf("new limiter: %w", err)
	}

	return &Limiter{
		limit:   cfg.Requests,
		window:  cfg.Window,
		clock:   cfg.Clock,
		buckets: buckets,
	}, nil
}

// Allow records a request for id if it is within the limit.
func (l *Limiter) Allow(id Identity) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	log, _ := l.buckets.Get(id)
	log = l.prune(log, now)

	if len(log) >= l.limit {
		l.buckets.Add(id, log)
		return Decision{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			RetryAfter: log[0].Add(l.window).Sub(now),
		}
	}

	log = append(log, now)
	l.buckets.Add(id, log)

	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(log),
	}
}

// Count returns the number of requests id has in the current window.
func (l *Limiter) Count(id Identity) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	log, ok := l.buckets.Peek(id)
	if !ok {
		return 0
	}
	return len(l.prune(log, l.clock.Now()))
}

// Sweep drops expired entries and removes identities with an empty window.
// It returns the number of identities still tracked.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	for _, id := range l.buckets.Keys() {
		log, ok := l.buckets.Peek(id)
		if !ok {
			continue
		}
		if len(l.prune(log, now)) == 0 {
			l.buckets.Remove(id)
		}
	}

	return l.buckets.Len()
}

// Reset forgets every identity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets.Purge()
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// prune returns the entries of log newer than now-window. The result reuses
// log's backing array.
func (l *Limiter) prune(log []time.Time, now time.Time) []time.Time {
	windowStart := now.Add(-l.window)
	i := 0
	for i < len(log) && !log[i].After(windowStart) {
		i++
	}
	return log[i:]
}
