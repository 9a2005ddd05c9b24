// Package schedule provides time-of-day window math for the quiet-hours
// gate. Times are "HH:MM" strings as stored in settings; a window whose
// start is later than its end wraps across midnight.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	minutesPerHour = 60
	maxHour        = 23
)

// Static errors for window validation.
var (
	ErrTimeFormat     = errors.New("time must be HH:MM")
	ErrInvalidHour    = errors.New("invalid hour")
	ErrInvalidMinute  = errors.New("invalid minute")
	ErrHourOutOfRange = errors.New("hour out of range")
)

// Window is an inclusive-start, exclusive-end time-of-day range.
// Both fields empty means the window is disabled.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Enabled reports whether the window has both bounds set.
func (w Window) Enabled() bool {
	return strings.TrimSpace(w.Start) != "" && strings.TrimSpace(w.End) != ""
}

// Validate checks both bounds parse as HH:MM. A disabled window is valid.
func (w Window) Validate() error {
	if !w.Enabled() {
		return nil
	}

	if _, err := ParseTimeHM(w.Start); err != nil {
		return fmt.Errorf("invalid window start %q: %w", w.Start, err)
	}

	if _, err := ParseTimeHM(w.End); err != nil {
		return fmt.Errorf("invalid window end %q: %w", w.End, err)
	}

	return nil
}

// Contains reports whether t's local time of day falls inside the window.
// A zero-length window (start == end) contains nothing; start > end wraps
// across midnight.
func (w Window) Contains(t time.Time) bool {
	if !w.Enabled() {
		return false
	}

	start, err := ParseTimeHM(w.Start)
	if err != nil {
		return false
	}

	end, err := ParseTimeHM(w.End)
	if err != nil {
		return false
	}

	if start == end {
		return false
	}

	minute := t.Hour()*minutesPerHour + t.Minute()

	if start < end {
		return minute >= start && minute < end
	}

	// Wraps midnight, e.g. 23:00..07:00.
	return minute >= start || minute < end
}

// ParseTimeHM parses an HH:MM string into minutes since midnight.
func ParseTimeHM(value string) (int, error) {
	normalized, err := NormalizeTimeHM(value)
	if err != nil {
		return 0, err
	}

	hour, err := strconv.Atoi(normalized[:2])
	if err != nil {
		return 0, ErrInvalidHour
	}

	minute, err := strconv.Atoi(normalized[3:])
	if err != nil {
		return 0, ErrInvalidMinute
	}

	return hour*minutesPerHour + minute, nil
}

// NormalizeTimeHM accepts H:MM or HH:MM and returns HH:MM.
func NormalizeTimeHM(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrTimeFormat
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return "", ErrTimeFormat
	}

	if len(parts[1]) != 2 {
		return "", ErrTimeFormat
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", ErrInvalidHour
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", ErrInvalidMinute
	}

	if hour > maxHour || hour < 0 {
		return "", ErrHourOutOfRange
	}

	if minute < 0 || minute >= minutesPerHour {
		return "", ErrInvalidMinute
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}
