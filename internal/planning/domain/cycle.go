package domain

import (
	"slices"
	"time"
)

// Cycle is one bounded planning horizon. It is immutable once created.
type Cycle struct {
	dates DateRange
}

// NewCycle creates a cycle of the given number of days starting at start.
func NewCycle(start Date, days int) (Cycle, error) {
	dates, err := NewDateRange(start, start.AddDays(days))
	if err != nil {
		return Cycle{}, err
	}
	return Cycle{dates: dates}, nil
}

// NewCycleFromRange wraps an existing date range.
func NewCycleFromRange(dates DateRange) Cycle {
	return Cycle{dates: dates}
}

func (c Cycle) Dates() DateRange { return c.dates }
func (c Cycle) Start() Date      { return c.dates.Start() }

// End is the first date after the cycle.
func (c Cycle) End() Date { return c.dates.End() }

// Days returns the number of calendar days in the cycle.
func (c Cycle) Days() int {
	n := 0
	for d := c.Start(); d.Compare(c.End()) < 0; d = d.AddDays(1) {
		n++
	}
	return n
}

// EachDate returns every date in the cycle in order.
func (c Cycle) EachDate() []Date {
	dates := make([]Date, 0, 7)
	for d := c.Start(); d.Compare(c.End()) < 0; d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// Includes reports whether date falls inside the cycle.
func (c Cycle) Includes(date Date) bool {
	return c.dates.ContainsPoint(date)
}

// Bounds returns the cycle as concrete instants in loc.
func (c Cycle) Bounds(loc *time.Location) DateTimeRange {
	return DateTimeRange{start: c.Start().Midnight(loc), end: c.End().Midnight(loc)}
}

func (c Cycle) Equal(other Cycle) bool {
	return c.dates.Equal(other.dates)
}

func (c Cycle) String() string {
	return c.dates.String()
}

// Cycles groups planning horizons with the break periods excluded from all of them.
type Cycles struct {
	cycles []Cycle
	breaks []DateRange
}

// NewCycles creates a cycle set. Cycles are kept in chronological order.
func NewCycles(cycles []Cycle, breaks []DateRange) *Cycles {
	sorted := slices.Clone(cycles)
	slices.SortFunc(sorted, func(a, b Cycle) int { return CompareRanges(a.dates, b.dates) })
	return &Cycles{
		cycles: sorted,
		breaks: slices.Clone(breaks),
	}
}

func (cs *Cycles) Cycles() []Cycle     { return slices.Clone(cs.cycles) }
func (cs *Cycles) Breaks() []DateRange { return slices.Clone(cs.breaks) }

// CycleFor returns the cycle containing date.
func (cs *Cycles) CycleFor(date Date) (Cycle, bool) {
	for _, c := range cs.cycles {
		if c.Includes(date) {
			return c, true
		}
	}
	return Cycle{}, false
}

// IsBreak reports whether date falls in any break period.
func (cs *Cycles) IsBreak(date Date) bool {
	for _, b := range cs.breaks {
		if b.ContainsPoint(date) {
			return true
		}
	}
	return false
}

// BreaksWithin returns the break periods clipped to cycle c.
func (cs *Cycles) BreaksWithin(c Cycle) []DateRange {
	clipped := make([]DateRange, 0, len(cs.breaks))
	for _, b := range cs.breaks {
		if part, ok := b.Intersect(c.dates); ok {
			clipped = append(clipped, part)
		}
	}
	return clipped
}

// BreakBounds converts date breaks into instants in loc.
func BreakBounds(breaks []DateRange, loc *time.Location) []DateTimeRange {
	out := make([]DateTimeRange, 0, len(breaks))
	for _, b := range breaks {
		out = append(out, DateTimeRange{start: b.Start().Midnight(loc), end: b.End().Midnight(loc)})
	}
	return out
}
