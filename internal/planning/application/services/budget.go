package services

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
)

// Budget bounds one search. A zero field means no limit on that dimension.
type Budget struct {
	MaxSteps    int
	MaxDuration time.Duration
}

// DefaultBudget returns the budget used when a request carries none.
func DefaultBudget() Budget {
	return Budget{
		MaxSteps:    1_000_000,
		MaxDuration: 10 * time.Second,
	}
}

// IsZero reports whether no limit is set.
func (b Budget) IsZero() bool {
	return b.MaxSteps == 0 && b.MaxDuration == 0
}

func (b Budget) String() string {
	return fmt.Sprintf("steps=%d duration=%s", b.MaxSteps, b.MaxDuration)
}

// meter counts search steps against a budget.
type meter struct {
	budget  Budget
	now     func() time.Time
	started time.Time
	steps   int
}

func newMeter(budget Budget, now func() time.Time) *meter {
	return &meter{budget: budget, now: now, started: now()}
}

// tick records one step and fails once either limit is passed.
func (m *meter) tick() error {
	m.steps++
	if m.budget.MaxSteps > 0 && m.steps > m.budget.MaxSteps {
		return fmt.Errorf("%w: more than %d steps", domain.ErrSearchBudgetExceeded, m.budget.MaxSteps)
	}
	// the clock is sampled every 64 steps
	if m.budget.MaxDuration > 0 && m.steps%64 == 0 {
		if elapsed := m.now().Sub(m.started); elapsed > m.budget.MaxDuration {
			return fmt.Errorf("%w: ran for %s", domain.ErrSearchBudgetExceeded, elapsed.Round(time.Millisecond))
		}
	}
	return nil
}

func (m *meter) elapsed() time.Duration {
	return m.now().Sub(m.started)
}
