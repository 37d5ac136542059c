package watcher

import (
	"sync"
	"time"

	"github.com/sells-group/price-sentry/internal/model"
)

// Stability defaults: a price is stable once the same value has been read
// twice within a one-second window.
const (
	DefaultStableReads  = 2
	DefaultStableWindow = time.Second
)

// Stability tracks consecutive agreeing price readings for one page session.
// A differing reading restarts the count at one and flags the session as
// having had an unstable price.
type Stability struct {
	mu       sync.Mutex
	required int
	window   time.Duration
	now      func() time.Time

	run         []model.StabilityObservation
	wasUnstable bool
	firstAt     time.Time
	lastAt      time.Time
}

// NewStability creates a tracker with the default thresholds.
func NewStability() *Stability {
	return &Stability{required: DefaultStableReads, window: DefaultStableWindow, now: time.Now}
}

// WithThresholds overrides the required read count and agreement window.
func (s *Stability) WithThresholds(reads int, window time.Duration) *Stability {
	if reads > 0 {
		s.required = reads
	}
	if window > 0 {
		s.window = window
	}
	return s
}

// WithNow sets a fixed clock for testing.
func (s *Stability) WithNow(now func() time.Time) *Stability {
	s.now = now
	return s
}

// Record notes one price reading and returns whether the value is now stable.
func (s *Stability) Record(value model.Money, conf model.Confidence) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	obs := model.StabilityObservation{
		Amount:     value.Amount,
		Currency:   value.Currency,
		Timestamp:  now,
		Confidence: conf,
	}

	// Drop readings too old to ever count toward the window again.
	cutoff := now.Add(-2 * s.window)
	for len(s.run) > 0 && s.run[0].Timestamp.Before(cutoff) {
		s.run = s.run[1:]
	}

	if len(s.run) > 0 && !sameValue(s.run[len(s.run)-1], obs) {
		s.wasUnstable = true
		s.run = s.run[:0]
	}
	s.run = append(s.run, obs)

	if s.firstAt.IsZero() {
		s.firstAt = now
	}
	s.lastAt = now

	return s.stableLocked()
}

// IsStable reports whether the current value has enough recent agreeing reads.
func (s *Stability) IsStable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stableLocked()
}

func (s *Stability) stableLocked() bool {
	if len(s.run) == 0 {
		return false
	}
	last := s.run[len(s.run)-1].Timestamp
	count := 0
	for _, o := range s.run {
		if !o.Timestamp.Before(last.Add(-s.window)) {
			count++
		}
	}
	return count >= s.required
}

// Current returns the most recent reading, or nil before the first one.
func (s *Stability) Current() *model.StabilityObservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.run) == 0 {
		return nil
	}
	obs := s.run[len(s.run)-1]
	return &obs
}

// Info derives the session's stability view.
func (s *Stability) Info() model.StabilityInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := model.StabilityInfo{
		StableReadCount:    len(s.run),
		PriceWasUnstable:   s.wasUnstable,
		FirstObservationAt: s.firstAt,
		LastObservationAt:  s.lastAt,
	}
	if len(s.run) > 1 {
		info.StableDurationMs = s.run[len(s.run)-1].Timestamp.Sub(s.run[0].Timestamp).Milliseconds()
	}
	return info
}

// Reset clears all session state, including the unstable flag. Called on
// navigation: a new page is a new session.
func (s *Stability) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = s.run[:0]
	s.wasUnstable = false
	s.firstAt = time.Time{}
	s.lastAt = time.Time{}
}

func sameValue(a, b model.StabilityObservation) bool {
	return model.Money{Amount: a.Amount, Currency: a.Currency}.
		SameAmount(model.Money{Amount: b.Amount, Currency: b.Currency})
}
