// Package cooldown enforces the minimum time between two operations of the same kind.
package cooldown

import (
	"time"

	"osrs-tracker/internal/domain"
)

type Guard struct {
	window  time.Duration
	tooSoon func(since, remaining time.Duration) error
}

// NewTrackGuard returns a guard failing with domain.ErrTooSoon.
func NewTrackGuard(window time.Duration) Guard {
	return Guard{window: window, tooSoon: domain.TooSoon}
}

// NewImportGuard returns a guard failing with domain.ErrImportTooSoon.
func NewImportGuard(window time.Duration) Guard {
	return Guard{
		window: window,
		tooSoon: func(_, remaining time.Duration) error {
			return domain.ImportTooSoon(remaining)
		},
	}
}

func (g Guard) Window() time.Duration {
	return g.window
}

// Check passes when last is nil (never performed) or at least the window has elapsed since last.
func (g Guard) Check(last *time.Time, now time.Time) error {
	if last == nil {
		return nil
	}

	since := now.Sub(*last)
	if since < g.window {
		return g.tooSoon(since, g.window-since)
	}
	return nil
}
