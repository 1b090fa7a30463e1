// Package timezone turns form input into canonical instants. Every instant in the
// system is anchored at UTC, never the caller's local clock.
package timezone

import (
	"strings"
	"time"
)

var dateLayouts = []string{"2006-01-02", "02.01.2006"}

var clockLayouts = []string{"15:04", "15:04:05", "3:04PM", "3:04 PM", "3:04pm", "3:04 pm"}

// Canonical is the single reference clock.
var Canonical = time.UTC

// Normalize merges a calendar date and a clock time into one instant.
// It returns false when either part is empty or cannot be parsed.
func Normalize(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, false
	}

	day, ok := parseAny(dateLayouts, date)
	if !ok {
		return time.Time{}, false
	}
	tod, ok := parseAny(clockLayouts, clock)
	if !ok {
		return time.Time{}, false
	}

	return time.Date(
		day.Year(), day.Month(), day.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0,
		Canonical,
	), true
}

// Format renders t in the canonical wire form (RFC 3339, UTC).
func Format(t time.Time) string {
	return t.In(Canonical).Format(time.RFC3339)
}

// Parse reads the canonical wire form back.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.In(Canonical), nil
}

func parseAny(layouts []string, value string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, Canonical); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
