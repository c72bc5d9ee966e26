package services

import (
	"time"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
)

// minStep is the finest derived grid. Offsets below a minute are still
// reached through segment edges and constraint anchors.
const minStep = time.Minute

// deriveStep returns the largest step that every window edge, scope edge,
// break edge, constraint anchor and duration of the request is a multiple
// of, measured from origin. A habit occurrence shifted as early as it can go
// starts on that grid.
func deriveStep(origin time.Time, units []unit, breaks []domain.DateTimeRange) time.Duration {
	var g time.Duration
	add := func(d time.Duration) {
		g = gcd(g, d)
	}
	addSpan := func(r domain.DateTimeRange) {
		add(r.Start().Sub(origin))
		add(r.End().Sub(origin))
	}

	seen := make(map[domain.ActivityID]bool)
	for _, u := range units {
		addSpan(u.scope)
		for _, anchor := range u.activity.Constraints().Anchors(u.scope) {
			add(anchor.Sub(origin))
		}
		if seen[u.activity.ID()] {
			continue
		}
		seen[u.activity.ID()] = true

		kind := u.activity.Kind()
		for _, windows := range kind.Index() {
			for _, w := range windows {
				addSpan(w)
			}
		}
		switch k := kind.(type) {
		case *domain.Habit:
			add(k.Duration())
		case *domain.Repeatable:
			add(k.Desirable())
			if m, ok := k.Min(); ok {
				add(m)
			}
			if m, ok := k.Max(); ok {
				add(m)
			}
		}
		if fixed, ok := u.activity.Constraints().SessionLength(); ok {
			add(fixed)
		}
	}
	for _, b := range breaks {
		addSpan(b)
	}

	if g < minStep {
		return minStep
	}
	return g
}

func gcd(a, b time.Duration) time.Duration {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// gridPoints lists the grid instants inside seg at which a placement of
// length still fits.
func (st *search) gridPoints(seg domain.DateTimeRange, length time.Duration) []time.Time {
	step := st.step
	t := seg.Start()
	if off := t.Sub(st.origin) % step; off != 0 {
		if off < 0 {
			off += step
		}
		t = t.Add(step - off)
	}

	var out []time.Time
	for ; t.Before(seg.End()) && !t.Add(length).After(seg.End()); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}
