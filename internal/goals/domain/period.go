package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidTimeUnit = errors.New("invalid time unit")

// TimeUnit is a granularity of usage buckets, ordered from finest to coarsest.
type TimeUnit int

const (
	Minutes TimeUnit = iota
	Hours
	Days
	Weeks
	Months
	Years
)

var timeUnitNames = [...]string{"minutes", "hours", "days", "weeks", "months", "years"}

// ParseTimeUnit accepts the plural or singular lowercase name.
func ParseTimeUnit(s string) (TimeUnit, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for i, name := range timeUnitNames {
		if strings.TrimSuffix(name, "s") == s {
			return TimeUnit(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimeUnit, s)
}

// IsValid checks if the unit is known.
func (u TimeUnit) IsValid() bool {
	return u >= Minutes && u <= Years
}

func (u TimeUnit) String() string {
	if !u.IsValid() {
		return fmt.Sprintf("TimeUnit(%d)", int(u))
	}
	return timeUnitNames[u]
}

// fixedLength is the bucket width of units measured by elapsed time.
func (u TimeUnit) fixedLength() (time.Duration, bool) {
	switch u {
	case Minutes:
		return time.Minute, true
	case Hours:
		return time.Hour, true
	case Days:
		return 24 * time.Hour, true
	case Weeks:
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Period is a quantity of one time unit.
type Period struct {
	quantity uint32
	unit     TimeUnit
}

// NewPeriod creates a period.
func NewPeriod(quantity uint32, unit TimeUnit) (Period, error) {
	if !unit.IsValid() {
		return Period{}, fmt.Errorf("%w: %d", ErrInvalidTimeUnit, int(unit))
	}
	return Period{quantity: quantity, unit: unit}, nil
}

func (p Period) Quantity() uint32 { return p.quantity }
func (p Period) Unit() TimeUnit   { return p.unit }

func (p Period) String() string {
	return fmt.Sprintf("%d per %s", p.quantity, strings.TrimSuffix(p.unit.String(), "s"))
}
