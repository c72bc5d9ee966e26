package services

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
)

var (
	ErrNoActivities      = errors.New("no activities to schedule")
	ErrDuplicateActivity = errors.New("activity listed more than once")
	ErrNilActivity       = errors.New("activity is nil")
)

// SchedulerConfig contains configuration for the scheduler.
type SchedulerConfig struct {
	// Budget applies to requests that carry a zero budget.
	Budget Budget
	// Granularity fixes the step between candidate starts inside a free
	// segment. Zero derives it from the request's windows and durations.
	Granularity time.Duration
}

// DefaultSchedulerConfig returns a default configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Budget: DefaultBudget(),
	}
}

// Request is the input of one search.
type Request struct {
	Cycle      domain.Cycle
	Breaks     []domain.DateRange
	Activities []*domain.Activity
	Budget     Budget
	Location   *time.Location
}

// Scheduler places activities into a cycle with a depth-first, desirability
// greedy search that backtracks chronologically. It keeps no state between
// calls, so one Scheduler can serve concurrent requests.
type Scheduler struct {
	config SchedulerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler creates a new scheduler.
func NewScheduler(config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// unit is one step of demand: a single habit occurrence, or the whole
// duration budget of a repeatable, within one interval scope.
type unit struct {
	activity   *domain.Activity
	scope      domain.DateTimeRange
	occurrence int
	habit      *domain.Habit
	repeatable *domain.Repeatable
}

// ordinal positions a habit candidate in search order.
type ordinal struct {
	rank   int
	window int
	start  time.Time
}

func (o ordinal) less(other ordinal) bool {
	if o.rank != other.rank {
		return o.rank < other.rank
	}
	if o.window != other.window {
		return o.window < other.window
	}
	return o.start.Before(other.start)
}

type candidate struct {
	actions []domain.Action
	ordinal ordinal
	total   time.Duration
}

type frame struct {
	unit       int
	candidates []candidate
	next       int
	chosen     int
}

type segment struct {
	rank   int
	window int
	span   domain.DateTimeRange
}

type search struct {
	config   SchedulerConfig
	schedule *domain.Schedule
	bounds   domain.DateTimeRange
	breaks   []domain.DateTimeRange
	units    []unit
	stack    []*frame
	origin   time.Time
	step     time.Duration
	// lengths holds the habit durations per activity, for reserving room
	// in repeatable fills.
	lengths map[domain.ActivityID]time.Duration
}

// Schedule searches for a schedule that satisfies every activity of req.
// It returns domain.ErrNoValidSolutionFound when the search space is
// exhausted and domain.ErrSearchBudgetExceeded when the budget runs out first.
// The returned schedule is never partial.
func (s *Scheduler) Schedule(req Request) (*domain.Schedule, error) {
	if len(req.Activities) == 0 {
		return nil, ErrNoActivities
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	budget := req.Budget
	if budget.IsZero() {
		budget = s.config.Budget
	}

	ids := make([]domain.ActivityID, 0, len(req.Activities))
	for _, a := range req.Activities {
		if a == nil {
			return nil, ErrNilActivity
		}
		if slices.Contains(ids, a.ID()) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateActivity, a.Name())
		}
		ids = append(ids, a.ID())
	}

	st := &search{
		config:   s.config,
		schedule: domain.NewSchedule(req.Cycle, ids...),
		bounds:   req.Cycle.Bounds(loc),
		breaks:   domain.BreakBounds(req.Breaks, loc),
	}
	st.units = st.expand(req.Activities, loc)
	st.origin = st.bounds.Start()
	st.step = s.config.Granularity
	if st.step <= 0 {
		st.step = deriveStep(st.origin, st.units, st.breaks)
	}
	st.lengths = habitLengths(req.Activities)

	s.logger.Debug("schedule search started",
		"cycle", req.Cycle.String(),
		"activities", len(req.Activities),
		"units", len(st.units),
		"budget", budget.String(),
		"step", st.step,
	)

	m := newMeter(budget, s.now)
	schedule, err := st.run(m)
	if err != nil {
		s.logger.Debug("schedule search failed",
			"cycle", req.Cycle.String(),
			"steps", m.steps,
			"elapsed", m.elapsed(),
			"error", err,
		)
		return nil, err
	}

	for _, w := range schedule.Warnings() {
		s.logger.Warn("activity below desirable duration", "cycle", req.Cycle.String(), "detail", w)
	}
	s.logger.Debug("schedule search finished",
		"cycle", req.Cycle.String(),
		"steps", m.steps,
		"elapsed", m.elapsed(),
		"actions", schedule.Len(),
	)
	return schedule, nil
}

// expand turns activities into units: caller order first, then scopes in
// chronological order. Scopes without any usable window are skipped.
func (st *search) expand(activities []*domain.Activity, loc *time.Location) []unit {
	units := make([]unit, 0, len(activities)*7)
	for _, a := range activities {
		kind := a.Kind()
		for _, scope := range kind.Interval().Scopes(st.schedule.Cycle(), loc) {
			if !st.active(kind.Index(), scope) {
				continue
			}
			switch k := kind.(type) {
			case *domain.Habit:
				for i := 0; i < k.Times(); i++ {
					units = append(units, unit{activity: a, scope: scope, occurrence: i, habit: k})
				}
			case *domain.Repeatable:
				units = append(units, unit{activity: a, scope: scope, repeatable: k})
			}
		}
	}
	return units
}

// active reports whether some window reaches into scope outside every break.
func (st *search) active(index domain.DesirabilityIndex, scope domain.DateTimeRange) bool {
	for _, rank := range index {
		for _, w := range rank {
			part, ok := w.Intersect(scope)
			if !ok {
				continue
			}
			if part, ok = part.Intersect(st.bounds); !ok {
				continue
			}
			if len(domain.Subtract(part, st.breaks)) > 0 {
				return true
			}
		}
	}
	return false
}

func (st *search) run(m *meter) (*domain.Schedule, error) {
	if len(st.units) == 0 {
		return st.schedule, nil
	}

	var failure *domain.InfeasibleActivityError
	failedAt := -1

	st.push(0)
	for len(st.stack) > 0 {
		if err := m.tick(); err != nil {
			return nil, err
		}

		top := st.stack[len(st.stack)-1]
		if err := st.undo(top); err != nil {
			return nil, err
		}

		if top.next >= len(top.candidates) {
			if top.unit > failedAt {
				u := st.units[top.unit]
				failedAt = top.unit
				failure = &domain.InfeasibleActivityError{
					ActivityID: u.activity.ID(),
					Name:       u.activity.Name(),
					Scope:      u.scope,
				}
			}
			st.stack = st.stack[:len(st.stack)-1]
			continue
		}

		st.commit(top, top.next)
		top.next++

		if top.unit == len(st.units)-1 {
			return st.finish()
		}
		st.push(top.unit + 1)
	}

	return nil, fmt.Errorf("%w: %w", domain.ErrNoValidSolutionFound, failure)
}

func (st *search) push(i int) {
	u := st.units[i]
	var candidates []candidate
	if u.habit != nil {
		var prev *ordinal
		if u.occurrence > 0 {
			parent := st.stack[len(st.stack)-1]
			prev = &parent.candidates[parent.chosen].ordinal
		}
		candidates = st.habitCandidates(u, prev)
	} else {
		candidates = st.repeatableCandidates(u)
	}
	st.stack = append(st.stack, &frame{unit: i, candidates: candidates, chosen: -1})
}

func (st *search) commit(f *frame, i int) {
	for _, a := range f.candidates[i].actions {
		st.schedule.Place(a)
	}
	f.chosen = i
}

// undo takes the frame's chosen candidate back out of the schedule. A
// missing action means the stack and the schedule diverged.
func (st *search) undo(f *frame) error {
	if f.chosen < 0 {
		return nil
	}
	for _, a := range f.candidates[f.chosen].actions {
		if err := st.schedule.Remove(a); err != nil {
			return fmt.Errorf("search state out of sync with schedule: %w", err)
		}
	}
	f.chosen = -1
	return nil
}

func (st *search) finish() (*domain.Schedule, error) {
	result := st.schedule.Clone()
	for _, f := range st.stack {
		u := st.units[f.unit]
		if u.repeatable == nil {
			continue
		}
		if _, hasMin := u.repeatable.Min(); hasMin {
			continue
		}
		if total := f.candidates[f.chosen].total; total < u.repeatable.Desirable() {
			result.AddWarning(fmt.Sprintf("%s: placed %s of desirable %s in %s",
				u.activity.Name(), total, u.repeatable.Desirable(), u.scope))
		}
	}
	if err := result.Validate(st.bounds, st.breaks); err != nil {
		return nil, fmt.Errorf("search produced an invalid schedule: %w", err)
	}
	return result, nil
}

// occupied returns every span a new placement must avoid.
func (st *search) occupied() []domain.DateTimeRange {
	all := st.schedule.AllActions()
	spans := make([]domain.DateTimeRange, 0, len(all)+len(st.breaks))
	for _, a := range all {
		spans = append(spans, a.Span())
	}
	return append(spans, st.breaks...)
}

// segments lists the free parts of the unit's windows inside its scope, in
// rank order and chronologically within a rank.
func (st *search) segments(u unit) []segment {
	occupied := st.occupied()
	var segs []segment
	for r, windows := range u.activity.Kind().Index() {
		for wi, w := range windows {
			part, ok := w.Intersect(u.scope)
			if !ok {
				continue
			}
			if part, ok = part.Intersect(st.bounds); !ok {
				continue
			}
			for _, free := range domain.Subtract(part, occupied) {
				segs = append(segs, segment{rank: r, window: wi, span: free})
			}
		}
	}
	return segs
}

// starts lists the instants worth trying inside seg: its start, the latest
// start that still fits length, constraint anchors and every grid step.
func (st *search) starts(seg domain.DateTimeRange, length time.Duration, constraints *domain.ConstraintSet) []time.Time {
	starts := []time.Time{seg.Start()}
	if length > 0 && length < seg.Duration() {
		starts = append(starts, seg.End().Add(-length))
	}
	starts = append(starts, constraints.Anchors(seg)...)
	starts = append(starts, st.gridPoints(seg, length)...)
	slices.SortFunc(starts, time.Time.Compare)
	return slices.CompactFunc(starts, time.Time.Equal)
}

func (st *search) habitCandidates(u unit, prev *ordinal) []candidate {
	id := u.activity.ID()
	constraints := u.activity.Constraints()
	placed := st.schedule.Actions(id)
	length := u.habit.Duration()

	var out []candidate
	for _, seg := range st.segments(u) {
		for _, start := range st.starts(seg.span, length, constraints) {
			ord := ordinal{rank: seg.rank, window: seg.window, start: start}
			if prev != nil && !prev.less(ord) {
				continue
			}
			span, err := domain.NewDateTimeRange(start, start.Add(length))
			if err != nil || !seg.span.Contains(span) {
				continue
			}
			action := domain.NewAction(id, span)
			if !constraints.Validate(action, placed) {
				continue
			}
			out = append(out, candidate{actions: []domain.Action{action}, ordinal: ord, total: length})
		}
	}
	return out
}

// repeatableCandidates builds the alternative block sets for one scope,
// aiming at the desirable total and then at the minimum. For each target it
// fills greedily from every grid point, wrapping round to the segments
// before it, and then from the first segment with room reserved for
// another activity's session at every grid point. Without a minimum an
// empty set is the last resort.
func (st *search) repeatableCandidates(u unit) []candidate {
	r := u.repeatable
	segs := st.segments(u)
	placed := st.schedule.Actions(u.activity.ID())

	targets := []time.Duration{r.Desirable()}
	if m, ok := r.Min(); ok && m > 0 && m < r.Desirable() {
		targets = append(targets, m)
	}
	reserve := st.reservations(u)

	var out []candidate
	seen := make(map[string]bool)
	add := func(blocks []domain.Action, total time.Duration) {
		if total == 0 || total < r.Required() {
			return
		}
		slices.SortFunc(blocks, func(a, b domain.Action) int { return a.Start().Compare(b.Start()) })
		key := blockKey(blocks)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, candidate{actions: blocks, total: total})
	}

	pieces := make([]domain.DateTimeRange, len(segs))
	for i, seg := range segs {
		pieces[i] = seg.span
	}
	for _, target := range targets {
		for i, seg := range segs {
			for _, p := range st.rotationPoints(seg.span) {
				add(st.fill(u, rotate(pieces, i, p), target, placed, nil))
			}
		}
		for _, length := range reserve {
			for _, seg := range segs {
				for _, h := range st.gridPoints(seg.span, length) {
					hole, err := domain.NewDateTimeRange(h, h.Add(length))
					if err != nil {
						continue
					}
					add(st.fill(u, pieces, target, placed, []domain.DateTimeRange{hole}))
				}
			}
		}
	}
	if r.Required() == 0 {
		out = append(out, candidate{})
	}
	return out
}

// reservations lists the distinct session lengths of the habit activities
// other than u's, shortest first.
func (st *search) reservations(u unit) []time.Duration {
	var out []time.Duration
	for id, length := range st.lengths {
		if id == u.activity.ID() || slices.Contains(out, length) {
			continue
		}
		out = append(out, length)
	}
	slices.Sort(out)
	return out
}

func (st *search) rotationPoints(seg domain.DateTimeRange) []time.Time {
	points := append([]time.Time{seg.Start()}, st.gridPoints(seg, 0)...)
	return slices.CompactFunc(points, time.Time.Equal)
}

// rotate orders pieces so a fill starts at p inside pieces[i], runs through
// the later pieces and wraps round to the earlier ones, ending with the part
// of pieces[i] before p.
func rotate(pieces []domain.DateTimeRange, i int, p time.Time) []domain.DateTimeRange {
	head := pieces[i]
	out := make([]domain.DateTimeRange, 0, len(pieces)+1)
	var tail []domain.DateTimeRange
	if p.After(head.Start()) && p.Before(head.End()) {
		after, errAfter := domain.NewDateTimeRange(p, head.End())
		before, errBefore := domain.NewDateTimeRange(head.Start(), p)
		if errAfter == nil && errBefore == nil {
			head = after
			tail = append(tail, before)
		}
	}
	out = append(out, head)
	out = append(out, pieces[i+1:]...)
	out = append(out, pieces[:i]...)
	return append(out, tail...)
}

func blockKey(blocks []domain.Action) string {
	var b strings.Builder
	for _, a := range blocks {
		b.WriteString(strconv.FormatInt(a.Start().UnixNano(), 36))
		b.WriteByte('-')
		b.WriteString(strconv.FormatInt(a.End().UnixNano(), 36))
		b.WriteByte(';')
	}
	return b.String()
}

// fill places blocks greedily through pieces in order until target is
// reached, keeping clear of reserved spans.
func (st *search) fill(u unit, pieces []domain.DateTimeRange, target time.Duration, placed []domain.Action, reserved []domain.DateTimeRange) ([]domain.Action, time.Duration) {
	id := u.activity.ID()
	constraints := u.activity.Constraints()
	fixed, hasFixed := constraints.SessionLength()

	var blocks []domain.Action
	remaining := target
	for _, piece := range pieces {
		if remaining <= 0 {
			break
		}
		taken := slices.Clone(reserved)
		for _, b := range blocks {
			taken = append(taken, b.Span())
		}
		for _, free := range domain.Subtract(piece, taken) {
			if remaining <= 0 {
				break
			}
			var length time.Duration
			if hasFixed {
				length = fixed
			}
			for _, start := range st.starts(free, length, constraints) {
				size := length
				if !hasFixed {
					size = min(remaining, free.End().Sub(start))
				}
				if size <= 0 || size > remaining {
					continue
				}
				span, err := domain.NewDateTimeRange(start, start.Add(size))
				if err != nil || !free.Contains(span) {
					continue
				}
				action := domain.NewAction(id, span)
				if !constraints.Validate(action, slices.Concat(placed, blocks)) {
					continue
				}
				blocks = append(blocks, action)
				remaining -= size
				break
			}
		}
	}
	return blocks, target - remaining
}

// habitLengths maps every habit activity to its session length.
func habitLengths(activities []*domain.Activity) map[domain.ActivityID]time.Duration {
	out := make(map[domain.ActivityID]time.Duration)
	for _, a := range activities {
		if h, ok := a.Kind().(*domain.Habit); ok {
			out[a.ID()] = h.Duration()
		}
	}
	return out
}
