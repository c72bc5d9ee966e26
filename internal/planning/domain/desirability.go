package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrMissingDesirability = errors.New("no desirability configured for weekday")

// MissingDesirabilityError names the weekday the weekly map lacks.
type MissingDesirabilityError struct {
	Weekday time.Weekday
}

func (e *MissingDesirabilityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingDesirability, e.Weekday)
}

func (e *MissingDesirabilityError) Unwrap() error { return ErrMissingDesirability }

// RankedWindows holds the windows of one weekday grouped by rank.
// Index 0 is the most desirable.
type RankedWindows [][]TimeRange

// WeeklyDesirability maps each weekday to its ranked windows.
type WeeklyDesirability map[time.Weekday]RankedWindows

// DefaultWeeklyDesirability is every day from 07:00 to 22:00 at rank 0.
func DefaultWeeklyDesirability() WeeklyDesirability {
	window := TimeRange{start: ClockTime(7 * time.Hour), end: ClockTime(22 * time.Hour)}
	weekly := make(WeeklyDesirability, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		weekly[wd] = RankedWindows{{window}}
	}
	return weekly
}

// DayFilter selects which weekdays of a cycle take part in materialization.
type DayFilter func(time.Weekday) bool

// AllDays accepts every weekday.
func AllDays(time.Weekday) bool { return true }

// Weekdays accepts Monday through Friday.
func Weekdays(wd time.Weekday) bool {
	return wd >= time.Monday && wd <= time.Friday
}

// Weekends accepts Saturday and Sunday.
func Weekends(wd time.Weekday) bool {
	return wd == time.Saturday || wd == time.Sunday
}

// OnDays accepts only the listed weekdays.
func OnDays(days ...time.Weekday) DayFilter {
	return func(wd time.Weekday) bool {
		return slices.Contains(days, wd)
	}
}

// DesirabilityIndex is the materialized form of a weekly map over one cycle:
// concrete windows per rank, each rank in chronological order.
type DesirabilityIndex [][]DateTimeRange

// Materialize turns a weekly preference map into concrete windows for every
// day of cycle accepted by filter. The weekly map is not modified.
func Materialize(weekly WeeklyDesirability, cycle Cycle, filter DayFilter, loc *time.Location) (DesirabilityIndex, error) {
	if filter == nil {
		filter = AllDays
	}
	if loc == nil {
		loc = time.UTC
	}

	index := make(DesirabilityIndex, 0, 4)
	for _, date := range cycle.EachDate() {
		if !filter(date.Weekday()) {
			continue
		}
		ranks, ok := weekly[date.Weekday()]
		if !ok {
			return nil, &MissingDesirabilityError{Weekday: date.Weekday()}
		}
		for rank, windows := range ranks {
			for len(index) <= rank {
				index = append(index, make([]DateTimeRange, 0))
			}
			for _, w := range windows {
				index[rank] = append(index[rank], DateTimeRange{
					start: date.At(w.Start(), loc),
					end:   date.At(w.End(), loc),
				})
			}
		}
	}

	for _, rank := range index {
		slices.SortFunc(rank, CompareRanges[time.Time])
	}
	return index, nil
}

// Ranks returns the number of ranks.
func (d DesirabilityIndex) Ranks() int { return len(d) }

// Rank returns the windows of rank i, or nil when out of range.
func (d DesirabilityIndex) Rank(i int) []DateTimeRange {
	if i < 0 || i >= len(d) {
		return nil
	}
	return d[i]
}

// Windows returns the total number of windows over all ranks.
func (d DesirabilityIndex) Windows() int {
	n := 0
	for _, rank := range d {
		n += len(rank)
	}
	return n
}

// Within reports whether any window overlaps span.
func (d DesirabilityIndex) Within(span DateTimeRange) bool {
	for _, rank := range d {
		for _, w := range rank {
			if w.Overlaps(span) {
				return true
			}
		}
	}
	return false
}
