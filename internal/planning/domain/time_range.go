package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrInvalidRange = errors.New("range start must be before its end")

// Point is a position on an ordered timeline. time.Time, ClockTime and Date
// all satisfy it.
type Point[T any] interface {
	Compare(other T) int
	Sub(other T) time.Duration
	Add(d time.Duration) T
}

// Range is a half-open interval [start, end).
type Range[T Point[T]] struct {
	start T
	end   T
}

// DateTimeRange is a range of concrete instants.
type DateTimeRange = Range[time.Time]

// TimeRange is a range of clock times within a day.
type TimeRange = Range[ClockTime]

// DateRange is a range of calendar dates.
type DateRange = Range[Date]

// NewRange creates a range, rejecting empty or inverted bounds.
func NewRange[T Point[T]](start, end T) (Range[T], error) {
	if start.Compare(end) >= 0 {
		return Range[T]{}, fmt.Errorf("%w: [%v, %v)", ErrInvalidRange, start, end)
	}
	return Range[T]{start: start, end: end}, nil
}

// NewDateTimeRange creates a range of instants.
func NewDateTimeRange(start, end time.Time) (DateTimeRange, error) {
	return NewRange(start, end)
}

// NewTimeRange creates a range of clock times.
func NewTimeRange(start, end ClockTime) (TimeRange, error) {
	return NewRange(start, end)
}

// NewDateRange creates a range of dates; end is exclusive.
func NewDateRange(start, end Date) (DateRange, error) {
	return NewRange(start, end)
}

func (r Range[T]) Start() T { return r.start }
func (r Range[T]) End() T   { return r.end }

// Duration returns the length of the range.
func (r Range[T]) Duration() time.Duration {
	return r.end.Sub(r.start)
}

// Overlaps reports whether the two ranges share any point:
// max(a.start, b.start) < min(a.end, b.end).
func (r Range[T]) Overlaps(other Range[T]) bool {
	return maxPoint(r.start, other.start).Compare(minPoint(r.end, other.end)) < 0
}

// Contains reports whether other lies entirely within r. A range contains itself.
func (r Range[T]) Contains(other Range[T]) bool {
	return r.start.Compare(other.start) <= 0 && r.end.Compare(other.end) >= 0
}

// ContainsPoint reports whether p lies in [start, end).
func (r Range[T]) ContainsPoint(p T) bool {
	return r.start.Compare(p) <= 0 && p.Compare(r.end) < 0
}

// ShiftTo moves the range so it begins at newStart, keeping its duration.
func (r Range[T]) ShiftTo(newStart T) Range[T] {
	return Range[T]{start: newStart, end: newStart.Add(r.Duration())}
}

// Intersect returns the common part of both ranges.
func (r Range[T]) Intersect(other Range[T]) (Range[T], bool) {
	if !r.Overlaps(other) {
		return Range[T]{}, false
	}
	return Range[T]{start: maxPoint(r.start, other.start), end: minPoint(r.end, other.end)}, true
}

// Equal reports whether both bounds are equal.
func (r Range[T]) Equal(other Range[T]) bool {
	return r.start.Compare(other.start) == 0 && r.end.Compare(other.end) == 0
}

func (r Range[T]) String() string {
	return fmt.Sprintf("[%v, %v)", r.start, r.end)
}

// Subtract removes every hole from r and returns the remaining pieces in
// chronological order.
func Subtract[T Point[T]](r Range[T], holes []Range[T]) []Range[T] {
	sorted := slices.Clone(holes)
	slices.SortFunc(sorted, CompareRanges[T])

	free := make([]Range[T], 0, 1)
	cursor := r.start
	for _, hole := range sorted {
		if !hole.Overlaps(r) {
			continue
		}
		if cursor.Compare(hole.start) < 0 {
			free = append(free, Range[T]{start: cursor, end: hole.start})
		}
		if cursor.Compare(hole.end) < 0 {
			cursor = hole.end
		}
	}
	if cursor.Compare(r.end) < 0 {
		free = append(free, Range[T]{start: cursor, end: r.end})
	}
	return free
}

// CompareRanges orders ranges by start, then by end.
func CompareRanges[T Point[T]](a, b Range[T]) int {
	if c := a.start.Compare(b.start); c != 0 {
		return c
	}
	return a.end.Compare(b.end)
}

func maxPoint[T Point[T]](a, b T) T {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

func minPoint[T Point[T]](a, b T) T {
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}
