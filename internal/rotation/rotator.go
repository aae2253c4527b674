package rotation

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"comichub/internal/domain/ads"
)

// DefaultInterval is how long each ad stays on screen.
const DefaultInterval = 5 * time.Second

var ErrIndexOutOfRange = errors.New("rotation index out of range")

type State int

const (
	Idle State = iota
	Displaying
)

func (s State) String() string {
	if s == Displaying {
		return "displaying"
	}
	return "idle"
}

// Ticker is the subset of *time.Ticker the rotator needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// DisplayFunc is called with the newly displayed ad. It runs on the
// rotator's goroutine or the caller's, must not block and must not call back
// into the rotator.
type DisplayFunc func(index int, ad ads.Ad)

type Option func(*Rotator)

func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(r *Rotator) { r.newTicker = newTicker }
}

func OnDisplay(fn DisplayFunc) Option {
	return func(r *Rotator) { r.onDisplay = fn }
}

// Rotator cycles through an ordered list of ads for one slot, advancing one
// position per interval and wrapping at the end. The timer only runs while
// there is more than one ad to show.
type Rotator struct {
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	onDisplay DisplayFunc

	mu       sync.Mutex
	ads      []ads.Ad
	index    int
	ticker   Ticker
	tickStop chan struct{}
	stopped  bool
	wg       sync.WaitGroup

	// order is held from an index change through its callback, so callbacks
	// arrive in the order the index moved.
	order sync.Mutex

	// dispatch is held shared by callbacks in flight; Stop takes it
	// exclusively to wait them out.
	dispatch sync.RWMutex
	halted   atomic.Bool
}

func New(interval time.Duration, opts ...Option) *Rotator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Rotator{
		interval:  interval,
		newTicker: NewTimeTicker,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetAds replaces the rotation list. The ad on screen keeps its place if it
// is still in the list; otherwise rotation restarts at index 0.
func (r *Rotator) SetAds(list []ads.Ad) {
	r.order.Lock()
	defer r.order.Unlock()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}

	var (
		prevID  int64
		hadPrev = len(r.ads) > 0
	)
	if hadPrev {
		prevID = r.ads[r.index].ID
	}

	r.ads = append([]ads.Ad(nil), list...)
	r.index = 0
	if hadPrev {
		for i, ad := range r.ads {
			if ad.ID == prevID {
				r.index = i
				break
			}
		}
	}

	if len(r.ads) > 1 {
		r.startTickerLocked()
	} else {
		r.stopTickerLocked()
	}

	changed := len(r.ads) > 0 && (!hadPrev || r.ads[r.index].ID != prevID)
	idx, ad := r.index, r.currentLocked()
	r.mu.Unlock()

	if changed {
		r.notify(idx, ad)
	}
}

// Jump moves straight to index k. The timer phase is left alone.
func (r *Rotator) Jump(k int) error {
	r.order.Lock()
	defer r.order.Unlock()

	r.mu.Lock()
	if r.stopped || k < 0 || k >= len(r.ads) {
		r.mu.Unlock()
		return ErrIndexOutOfRange
	}
	r.index = k
	ad := r.ads[k]
	r.mu.Unlock()

	r.notify(k, ad)
	return nil
}

// Current returns the displayed ad and its index; ok is false when idle.
func (r *Rotator) Current() (ad ads.Ad, index int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ads) == 0 {
		return ads.Ad{}, 0, false
	}
	return r.ads[r.index], r.index, true
}

func (r *Rotator) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ads) == 0 {
		return Idle
	}
	return Displaying
}

// Len returns the number of ads in rotation.
func (r *Rotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ads)
}

// Stop tears down the timer. No transition or callback happens after Stop returns.
func (r *Rotator) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.stopTickerLocked()
	r.mu.Unlock()

	r.halted.Store(true)
	r.dispatch.Lock()
	r.dispatch.Unlock()
	r.wg.Wait()
}

func (r *Rotator) currentLocked() ads.Ad {
	if len(r.ads) == 0 {
		return ads.Ad{}
	}
	return r.ads[r.index]
}

func (r *Rotator) startTickerLocked() {
	if r.ticker != nil {
		return
	}
	t := r.newTicker(r.interval)
	stop := make(chan struct{})
	r.ticker = t
	r.tickStop = stop

	r.wg.Add(1)
	go r.loop(t, stop)
}

func (r *Rotator) stopTickerLocked() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.tickStop)
	r.ticker = nil
	r.tickStop = nil
}

func (r *Rotator) loop(t Ticker, stop <-chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			r.advance(stop)
		}
	}
}

func (r *Rotator) advance(stop <-chan struct{}) {
	r.order.Lock()
	defer r.order.Unlock()

	r.mu.Lock()
	select {
	case <-stop:
		// torn down while this tick was waiting for the lock
		r.mu.Unlock()
		return
	default:
	}
	if len(r.ads) <= 1 {
		r.mu.Unlock()
		return
	}
	r.index = (r.index + 1) % len(r.ads)
	idx, ad := r.index, r.ads[r.index]
	r.mu.Unlock()

	r.notify(idx, ad)
}

func (r *Rotator) notify(index int, ad ads.Ad) {
	if r.onDisplay == nil {
		return
	}
	r.dispatch.RLock()
	defer r.dispatch.RUnlock()
	if r.halted.Load() {
		return
	}
	r.onDisplay(index, ad)
}
