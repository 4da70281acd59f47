// Package expiry derives demo expiry state from an absolute timestamp.
package expiry

import (
	"fmt"
	"strings"
	"time"

	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
)

// TimestampLayout is the ISO-8601 form used on the wire: UTC with millisecond
// precision, e.g. 2026-10-16T12:30:00.000Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Check returns the remaining whole seconds until expiresAt, floored and
// clamped at zero. A demo is expired exactly when no whole second remains.
func Check(expiresAt, now time.Time) domain.ExpiryState {
	remaining := int(expiresAt.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return domain.ExpiryState{
		IsExpired:        remaining == 0,
		RemainingSeconds: remaining,
	}
}

// CheckNow is Check against the wall clock.
func CheckNow(expiresAt time.Time) domain.ExpiryState {
	return Check(expiresAt, time.Now())
}

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(remainingSeconds int) string {
	if remainingSeconds <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", remainingSeconds/60, remainingSeconds%60)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts RFC 3339 timestamps with or without fractional
// seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
