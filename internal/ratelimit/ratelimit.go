// Package ratelimit throttles how often a client may sync, protecting
// the server from a misbehaving or compromised client flooding
// ClientSync messages faster than the expected tick interval.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config controls limiter behavior.
type Config struct {
	// Enabled indicates whether throttling is active at all.
	Enabled bool `yaml:"enabled"`
	// EventsPerSecond is the sustained rate each client key is allowed.
	EventsPerSecond float64 `yaml:"events_per_second"`
	// Burst is the number of events a key may send in a single burst.
	Burst int `yaml:"burst"`
	// IdleTimeout is how long a key's entry survives with no activity
	// before the cleanup sweep reclaims it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DefaultConfig matches the server's 500ms client sync tick with
// headroom for a burst of reconnect-triggered catch-up syncs.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		EventsPerSecond: 4,
		Burst:           8,
		IdleTimeout:     10 * time.Minute,
	}
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter rate-limits events per string key (typically a client ID),
// built on golang.org/x/time/rate's token bucket.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a Limiter and, if cfg.Enabled, starts its background
// cleanup sweep. Call Close to stop the sweep.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cfg.Enabled && cfg.IdleTimeout > 0 {
		go l.cleanupLoop()
	}
	return l
}

// Allow reports whether an event for key may proceed right now. A
// disabled limiter always allows.
func (l *Limiter) Allow(key string) bool {
	if !l.cfg.Enabled {
		return true
	}

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(l.cfg.EventsPerSecond), l.cfg.Burst)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()

	return e.limiter.Allow()
}

// Forget removes a key's bucket, used when a client disconnects so its
// state doesn't linger until the next sweep.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

// Close stops the background cleanup sweep.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	cutoff := time.Now().Add(-l.cfg.IdleTimeout)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
