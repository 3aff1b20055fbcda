package ratelimit

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBudgetExhausted is returned by Use once the window's calls are spent.
var ErrBudgetExhausted = errors.New("call budget exhausted")

// Budget caps how many calls a paid service gets per window (a day by default).
// A max of 0 means unlimited.
type Budget struct {
	mu        sync.Mutex
	name      string
	used      int
	denied    int
	max       int
	window    time.Duration
	resetTime time.Time
	now       func() time.Time
	log       *slog.Logger
}

// NewBudget creates a daily budget.
func NewBudget(name string, max int, log *slog.Logger) *Budget {
	return newBudget(name, max, 24*time.Hour, time.Now, log)
}

func newBudget(name string, max int, window time.Duration, now func() time.Time, log *slog.Logger) *Budget {
	if log == nil {
		log = slog.Default()
	}
	return &Budget{
		name:      name,
		max:       max,
		window:    window,
		resetTime: now().Add(window),
		now:       now,
		log:       log,
	}
}

// CanUse reports whether a call would currently be allowed.
func (b *Budget) CanUse() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()
	return b.max <= 0 || b.used < b.max
}

// Use consumes one call or returns ErrBudgetExhausted.
func (b *Budget) Use() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()

	if b.max > 0 && b.used >= b.max {
		b.denied++
		if b.denied == 1 {
			b.log.Warn("rate limit reached", "service", b.name, "used", b.used, "limit", b.max)
		}
		return ErrBudgetExhausted
	}

	b.used++
	b.log.Debug("budget usage", "service", b.name, "used", b.used, "limit", b.max)
	return nil
}

// GetStats returns current usage.
func (b *Budget) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"service":    b.name,
		"used":       b.used,
		"limit":      b.max,
		"denied":     b.denied,
		"reset_time": b.resetTime,
	}
}

// checkReset resets counters if reset time has passed
func (b *Budget) checkReset() {
	now := b.now()
	if now.After(b.resetTime) {
		b.log.Info("resetting rate limiter counters", "service", b.name, "used", b.used, "denied", b.denied)

		b.used = 0
		b.denied = 0
		b.resetTime = now.Add(b.window)
	}
}
