package weight

import (
	"strings"
	"time"
)

// dayLayout is the canonical calendar-day format, also used for display.
const dayLayout = "2006-01-02"

// Day is the duration of one calendar day in the UTC reference frame.
const Day = 24 * time.Hour

// DayKey identifies a calendar day in UTC, formatted as YYYY-MM-DD.
// Keys sort lexicographically in chronological order.
type DayKey string

// KeyOf maps an instant to its calendar day in UTC.
func KeyOf(t time.Time) DayKey {
	return DayKey(t.UTC().Format(dayLayout))
}

func (k DayKey) String() string { return string(k) }

// Noon returns 12:00 UTC of the day, or the zero time for a malformed key.
func (k DayKey) Noon() time.Time {
	t, err := time.ParseInLocation(dayLayout, string(k), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t.Add(12 * time.Hour)
}

// Normalize moves t to 12:00 UTC of its calendar day. Samples are stored at
// noon so that converting to and from local instants never crosses a day.
func Normalize(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 12, 0, 0, 0, time.UTC)
}

// StartOfDay returns 00:00 UTC of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay accepts YYYY-MM-DD or RFC3339 and returns the normalized instant.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: "date", Reason: "missing"}
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return Normalize(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Normalize(t), nil
	}
	return time.Time{}, &ValidationError{Field: "date", Reason: "use YYYY-MM-DD or RFC3339"}
}
