package ratelimiter

import (
	"sync"
	"time"
)

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

type window struct {
	start time.Time
	count int
}

// FixedWindowRateLimiter allows limit requests per client per window.
// Windows start at a client's first request.
type FixedWindowRateLimiter struct {
	sync.Mutex
	clients map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewFixedWindowLimiter(limit int, w time.Duration) *FixedWindowRateLimiter {
	rl := &FixedWindowRateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		window:  w,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *FixedWindowRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.Lock()
			now := rl.now()
			for key, w := range rl.clients {
				if now.Sub(w.start) >= rl.window {
					delete(rl.clients, key)
				}
			}
			rl.Unlock()
		}
	}
}

// Allow counts a request for key. When denied it returns how long until the
// client's window resets.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	rl.Lock()
	defer rl.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients[key] = &window{start: now, count: 1}
		return true, 0
	}
	if w.count < rl.limit {
		w.count++
		return true, 0
	}
	return false, rl.window - now.Sub(w.start)
}

// Close stops the background cleanup.
func (rl *FixedWindowRateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// Config is read from RATELIMITER_REQUESTS_COUNT and RATE_LIMITER_ENABLED.
type Config struct {
	RequestsPerTimeFrame int
	TimeFrame            time.Duration
	Enabled              bool
}
