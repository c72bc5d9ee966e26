package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidClock = errors.New("clock time must be between 00:00 and 24:00")

const day = 24 * time.Hour

// ClockTime is a wall-clock position within a day, measured from midnight.
// 24:00 is allowed so a window can run until the end of the day.
type ClockTime time.Duration

// NewClockTime builds a clock time from its components.
func NewClockTime(hour, minute, second int) (ClockTime, error) {
	c := ClockTime(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
	if hour < 0 || minute < 0 || second < 0 || c > ClockTime(day) {
		return 0, fmt.Errorf("%w: %02d:%02d:%02d", ErrInvalidClock, hour, minute, second)
	}
	return c, nil
}

// ParseClockTime parses "15:04", "15:04:05" or "24:00".
func ParseClockTime(s string) (ClockTime, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		sec = 0
		if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	}
	if m > 59 || sec > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return NewClockTime(h, m, sec)
}

// ClockOf returns the clock time of t in its own location.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()))
}

func (c ClockTime) Compare(other ClockTime) int {
	switch {
	case c < other:
		return -1
	case c > other:
		return 1
	default:
		return 0
	}
}

func (c ClockTime) Sub(other ClockTime) time.Duration {
	return time.Duration(c - other)
}

func (c ClockTime) Add(d time.Duration) ClockTime {
	return c + ClockTime(d)
}

func (c ClockTime) Hour() int   { return int(time.Duration(c) / time.Hour) }
func (c ClockTime) Minute() int { return int(time.Duration(c) % time.Hour / time.Minute) }
func (c ClockTime) Second() int { return int(time.Duration(c) % time.Minute / time.Second) }

func (c ClockTime) String() string {
	if c.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second())
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Date is a calendar day without a location.
type Date struct {
	t time.Time
}

// NewDate creates a date from its components, normalizing overflow the way
// time.Date does.
func NewDate(year int, month time.Month, d int) Date {
	return Date{t: time.Date(year, month, d, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO "2006-01-02" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }

func (d Date) Compare(other Date) int {
	return d.t.Compare(other.t)
}

func (d Date) Sub(other Date) time.Duration {
	return d.t.Sub(other.t)
}

// Add moves the date by d, truncated to whole days.
func (d Date) Add(dur time.Duration) Date {
	return Date{t: d.t.Add(dur).Truncate(day)}
}

// AddDays moves the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year(), d.Month(), d.Day()+n)
}

// At combines the date with a clock time in loc.
func (d Date) At(clock ClockTime, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), clock.Second(),
		int(time.Duration(clock)%time.Second), loc)
}

// Midnight returns the first instant of the date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return d.At(0, loc)
}

func (d Date) String() string {
	return d.t.Format(time.DateOnly)
}
