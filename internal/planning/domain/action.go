package domain

import (
	"fmt"
	"time"
)

// Action is one concrete placed occurrence of an activity.
type Action struct {
	activityID ActivityID
	span       DateTimeRange
}

// NewAction ties a span to an activity.
func NewAction(activityID ActivityID, span DateTimeRange) Action {
	return Action{activityID: activityID, span: span}
}

func (a Action) ActivityID() ActivityID  { return a.activityID }
func (a Action) Span() DateTimeRange     { return a.span }
func (a Action) Start() time.Time        { return a.span.Start() }
func (a Action) End() time.Time          { return a.span.End() }
func (a Action) Duration() time.Duration { return a.span.Duration() }

// Overlaps reports whether both actions share any instant, whatever their activity.
func (a Action) Overlaps(other Action) bool {
	return a.span.Overlaps(other.span)
}

func (a Action) Equal(other Action) bool {
	return a.activityID == other.activityID && a.span.Equal(other.span)
}

func (a Action) String() string {
	return fmt.Sprintf("%s %s", a.activityID, a.span)
}

func compareActions(a, b Action) int {
	return CompareRanges(a.span, b.span)
}
