package domain

import "slices"

// Strategy refines a completed schedule. ok is false when the strategy has no
// applicable change.
type Strategy interface {
	Apply(s *Schedule) (result *Schedule, ok bool)
}

// StrategyFunc adapts a function to a Strategy.
type StrategyFunc func(s *Schedule) (*Schedule, bool)

func (f StrategyFunc) Apply(s *Schedule) (*Schedule, bool) { return f(s) }

// FixedPoint applies its strategy until the result stops changing or the
// strategy declines. It always succeeds with the last schedule reached.
type FixedPoint struct {
	Strategy Strategy
}

func (f FixedPoint) Apply(s *Schedule) (*Schedule, bool) {
	current := s
	for {
		next, ok := f.Strategy.Apply(current.Clone())
		if !ok || next.Equal(current) {
			return current, true
		}
		current = next
	}
}

// Pair runs First then Second, declining if either declines.
type Pair struct {
	First  Strategy
	Second Strategy
}

func (p Pair) Apply(s *Schedule) (*Schedule, bool) {
	next, ok := p.First.Apply(s)
	if !ok {
		return nil, false
	}
	return p.Second.Apply(next)
}

// MergeAdjacent joins back-to-back actions of the same activity into one.
// Only the listed activities are touched; it declines when nothing merges.
type MergeAdjacent struct {
	ids []ActivityID
}

// NewMergeAdjacent creates a merge strategy for the given activities.
func NewMergeAdjacent(ids ...ActivityID) *MergeAdjacent {
	return &MergeAdjacent{ids: slices.Clone(ids)}
}

func (m *MergeAdjacent) Apply(s *Schedule) (*Schedule, bool) {
	out := s.Clone()
	changed := false
	for _, id := range m.ids {
		acts := out.Actions(id)
		if len(acts) < 2 {
			continue
		}
		merged := make([]Action, 0, len(acts))
		merged = append(merged, acts[0])
		for _, a := range acts[1:] {
			last := merged[len(merged)-1]
			if last.End().Equal(a.Start()) {
				merged[len(merged)-1] = NewAction(id, DateTimeRange{start: last.Start(), end: a.End()})
				changed = true
				continue
			}
			merged = append(merged, a)
		}
		out.Replace(id, merged)
	}
	if !changed {
		return nil, false
	}
	return out, true
}
