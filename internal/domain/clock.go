package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day expressed as seconds from midnight.
type Clock int

// SecondsPerDay is the length of one calendar day in seconds.
const SecondsPerDay = 24 * 60 * 60

// DateLayout is the canonical day date layout.
const DateLayout = "2006-01-02"

// ParseClock parses HH:MM or HHMM into a clock value.
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	var hh, mm string
	switch {
	case len(raw) == 5 && raw[2] == ':':
		hh, mm = raw[:2], raw[3:]
	case len(raw) == 4 && !strings.Contains(raw, ":"):
		hh, mm = raw[:2], raw[2:]
	case len(raw) == 4 && raw[1] == ':':
		hh, mm = raw[:1], raw[2:]
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidClock, raw)
	}
	return Clock(hour*3600 + minute*60), nil
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	secs := int(c) % SecondsPerDay
	if secs < 0 {
		secs += SecondsPerDay
	}
	return fmt.Sprintf("%02d:%02d", secs/3600, (secs%3600)/60)
}

// Until returns the forward distance in seconds from c to next, wrapping past midnight.
func (c Clock) Until(next Clock) int {
	d := int(next) - int(c)
	if d < 0 {
		d += SecondsPerDay
	}
	return d
}

// ParseDate parses a YYYY-MM-DD or YYYYMMDD date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layout := DateLayout
	if len(raw) == 8 && !strings.Contains(raw, "-") {
		layout = "20060102"
	}
	t, err := time.ParseInLocation(layout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}

// FormatDate renders t in the canonical day layout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
