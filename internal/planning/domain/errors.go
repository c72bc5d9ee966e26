package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInfeasibleActivity   = errors.New("activity cannot be placed")
	ErrNoValidSolutionFound = errors.New("no valid solution found")
	ErrSearchBudgetExceeded = errors.New("search budget exceeded")
)

// InfeasibleActivityError names the activity and scope that ran out of candidates.
type InfeasibleActivityError struct {
	ActivityID ActivityID
	Name       string
	Scope      DateTimeRange
}

func (e *InfeasibleActivityError) Error() string {
	return fmt.Sprintf("%s: %q in %s", ErrInfeasibleActivity, e.Name, e.Scope)
}

func (e *InfeasibleActivityError) Unwrap() error { return ErrInfeasibleActivity }
