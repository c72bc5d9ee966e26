package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var ErrUnknownKind = errors.New("unknown activity kind")

// KindName selects the demand of a Blueprint.
type KindName string

const (
	KindHabit      KindName = "habit"
	KindRepeatable KindName = "repeatable"
)

// Blueprint describes an activity independently of any cycle. Build turns
// it into an Activity whose desirability is materialized for one cycle.
type Blueprint struct {
	ID          ActivityID
	Name        string
	Description string
	Kind        KindName
	Interval    Interval

	// Desirability defaults to DefaultWeeklyDesirability.
	Desirability WeeklyDesirability
	// Days restricts the weekdays the activity may use. Empty means all.
	Days        []time.Weekday
	Constraints []Constraint

	// habit
	Duration time.Duration
	Times    int

	// repeatable
	Desirable time.Duration
	Min       *time.Duration
	Max       *time.Duration
}

// ActivityID returns ID, or the id derived from Name when ID is zero.
func (b Blueprint) ActivityID() ActivityID {
	if b.ID != (ActivityID{}) {
		return b.ID
	}
	return ActivityIDFromName(b.Name)
}

func (b Blueprint) filter() DayFilter {
	if len(b.Days) == 0 {
		return AllDays
	}
	return OnDays(b.Days...)
}

func (b Blueprint) weekly() WeeklyDesirability {
	if b.Desirability == nil {
		return DefaultWeeklyDesirability()
	}
	return b.Desirability
}

// Build creates the activity for cycle.
func (b Blueprint) Build(cycle Cycle, loc *time.Location) (*Activity, error) {
	index, err := Materialize(b.weekly(), cycle, b.filter(), loc)
	if err != nil {
		return nil, fmt.Errorf("activity %q: %w", b.Name, err)
	}

	var kind Kind
	switch b.Kind {
	case KindHabit:
		kind, err = NewHabit(b.Duration, b.Times, b.Interval, index)
	case KindRepeatable:
		var opts []RepeatableOption
		if b.Min != nil {
			opts = append(opts, WithMinimum(*b.Min))
		}
		if b.Max != nil {
			opts = append(opts, WithMaximum(*b.Max))
		}
		kind, err = NewRepeatable(b.Desirable, b.Interval, index, opts...)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, b.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("activity %q: %w", b.Name, err)
	}

	return RehydrateActivity(b.ActivityID(), b.Name, b.Description, kind, b.Constraints...)
}

// Fingerprint renders every input that influences placement. Two
// blueprints with equal fingerprints schedule identically.
func (b Blueprint) Fingerprint() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%s|%s|", b.ActivityID(), b.Name, b.Kind, b.Interval)
	switch b.Kind {
	case KindHabit:
		fmt.Fprintf(&sb, "%s x%d|", b.Duration, b.Times)
	case KindRepeatable:
		fmt.Fprintf(&sb, "%s [%s, %s]|", b.Desirable, optional(b.Min), optional(b.Max))
	}

	days := slices.Clone(b.Days)
	slices.Sort(days)
	fmt.Fprintf(&sb, "days=%v|", days)

	weekly := b.weekly()
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		ranks, ok := weekly[wd]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "%d:", wd)
		for _, windows := range ranks {
			for _, w := range windows {
				sb.WriteString(w.String())
			}
			sb.WriteByte(';')
		}
	}
	for _, c := range b.Constraints {
		sb.WriteString("|" + c.String())
	}
	return sb.String()
}

func optional(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
