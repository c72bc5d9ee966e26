// Package definitions reads plan files: the cycles, breaks, preferences,
// activities and goals a user wants planned.
package definitions

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	goals "github.com/felixgeelhaar/cadence/internal/goals/domain"
	"github.com/felixgeelhaar/cadence/internal/planning/domain"
)

var ErrInvalidDefinition = errors.New("invalid plan definition")

// Definition is a parsed plan file.
type Definition struct {
	Location   *time.Location
	Epoch      time.Time
	Cycles     *domain.Cycles
	Blueprints []domain.Blueprint
	Goals      []ActivityGoal
}

// ActivityGoal is the goal attached to one activity.
type ActivityGoal struct {
	ActivityID domain.ActivityID
	Name       string
	Goal       goals.Goal
}

// Load reads and parses the plan file at path. Files without a timezone
// are planned in UTC.
func Load(path string) (*Definition, error) {
	return LoadIn(path, time.UTC)
}

// LoadIn is Load with loc as the timezone of files that name none.
func LoadIn(path string, loc *time.Location) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	def, err := ParseIn(data, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a plan document. Unknown keys are rejected.
func Parse(data []byte) (*Definition, error) {
	return ParseIn(data, time.UTC)
}

// ParseIn is Parse with loc as the fallback timezone.
func ParseIn(data []byte, loc *time.Location) (*Definition, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return f.build(loc)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

func (f file) build(loc *time.Location) (*Definition, error) {
	if f.Timezone != "" {
		l, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return nil, invalid("timezone %q: %v", f.Timezone, err)
		}
		loc = l
	}

	cycles, err := f.cycles()
	if err != nil {
		return nil, err
	}
	breaks, err := f.breaks()
	if err != nil {
		return nil, err
	}

	epoch := cycles[0].Start().Midnight(loc)
	if f.Epoch != "" {
		d, err := domain.ParseDate(f.Epoch)
		if err != nil {
			return nil, invalid("epoch: %v", err)
		}
		epoch = d.Midnight(loc)
	}

	var shared domain.WeeklyDesirability
	if len(f.Desirability) > 0 {
		if shared, err = f.Desirability.weekly(); err != nil {
			return nil, err
		}
	}

	def := &Definition{
		Location: loc,
		Epoch:    epoch,
		Cycles:   domain.NewCycles(cycles, breaks),
	}
	if len(f.Activities) == 0 {
		return nil, invalid("no activities")
	}
	seen := make(map[domain.ActivityID]string, len(f.Activities))
	for i, a := range f.Activities {
		bp, err := a.blueprint(shared)
		if err != nil {
			return nil, fmt.Errorf("activity %d: %w", i+1, err)
		}
		id := bp.ActivityID()
		if prev, dup := seen[id]; dup {
			return nil, invalid("activity %q duplicates %q", a.Name, prev)
		}
		seen[id] = a.Name
		def.Blueprints = append(def.Blueprints, bp)

		if a.Goal != nil {
			g, err := a.Goal.goal(id)
			if err != nil {
				return nil, fmt.Errorf("activity %q goal: %w", a.Name, err)
			}
			def.Goals = append(def.Goals, ActivityGoal{ActivityID: id, Name: a.Name, Goal: g})
		}
	}
	return def, nil
}

func (f file) cycles() ([]domain.Cycle, error) {
	if len(f.Cycles) == 0 {
		return nil, invalid("no cycles")
	}
	var out []domain.Cycle
	for _, c := range f.Cycles {
		start, err := domain.ParseDate(c.Start)
		if err != nil {
			return nil, invalid("cycle start: %v", err)
		}
		repeat := max(c.Repeat, 1)
		for range repeat {
			cycle, err := domain.NewCycle(start, c.Days)
			if err != nil {
				return nil, invalid("cycle %s: %v", start, err)
			}
			out = append(out, cycle)
			start = start.AddDays(c.Days)
		}
	}
	for i := 1; i < len(out); i++ {
		if out[i].Start().Compare(out[i-1].End()) < 0 {
			return nil, invalid("cycle %s overlaps %s", out[i], out[i-1])
		}
	}
	return out, nil
}

func (f file) breaks() ([]domain.DateRange, error) {
	out := make([]domain.DateRange, 0, len(f.Breaks))
	for _, b := range f.Breaks {
		from, err := domain.ParseDate(b.From)
		if err != nil {
			return nil, invalid("break: %v", err)
		}
		to := from
		if b.To != "" {
			if to, err = domain.ParseDate(b.To); err != nil {
				return nil, invalid("break: %v", err)
			}
		}
		r, err := domain.NewDateRange(from, to.AddDays(1))
		if err != nil {
			return nil, invalid("break %s..%s: %v", b.From, b.To, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// weekly expands the selectors. Specific weekdays win over weekdays and
// weekends, which win over default.
func (d desirabilityDoc) weekly() (domain.WeeklyDesirability, error) {
	parsed := make(map[string]domain.RankedWindows, len(d))
	for selector, ranks := range d {
		rw := make(domain.RankedWindows, 0, len(ranks))
		for _, rank := range ranks {
			windows := make([]domain.TimeRange, 0, len(rank))
			for _, w := range rank {
				tr, err := parseWindow(w)
				if err != nil {
					return nil, err
				}
				windows = append(windows, tr)
			}
			rw = append(rw, windows)
		}
		parsed[strings.ToLower(strings.TrimSpace(selector))] = rw
	}

	weekly := make(domain.WeeklyDesirability, 7)
	apply := func(selector string, accept domain.DayFilter) {
		rw, ok := parsed[selector]
		if !ok {
			return
		}
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if accept(wd) {
				weekly[wd] = rw
			}
		}
		delete(parsed, selector)
	}
	apply("default", domain.AllDays)
	apply("weekdays", domain.Weekdays)
	apply("weekends", domain.Weekends)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		apply(strings.ToLower(wd.String()), domain.OnDays(wd))
	}
	for selector := range parsed {
		return nil, invalid("unknown desirability selector %q", selector)
	}
	return weekly, nil
}

func parseWindow(s string) (domain.TimeRange, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return domain.TimeRange{}, invalid("window %q: want HH:MM-HH:MM", s)
	}
	start, err := domain.ParseClockTime(strings.TrimSpace(from))
	if err != nil {
		return domain.TimeRange{}, invalid("window %q: %v", s, err)
	}
	end, err := domain.ParseClockTime(strings.TrimSpace(to))
	if err != nil {
		return domain.TimeRange{}, invalid("window %q: %v", s, err)
	}
	tr, err := domain.NewTimeRange(start, end)
	if err != nil {
		return domain.TimeRange{}, invalid("window %q: %v", s, err)
	}
	return tr, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return wd, nil
		}
	}
	return 0, invalid("unknown weekday %q", s)
}

func (a activityDoc) blueprint(shared domain.WeeklyDesirability) (domain.Blueprint, error) {
	if strings.TrimSpace(a.Name) == "" {
		return domain.Blueprint{}, invalid("missing name")
	}

	bp := domain.Blueprint{
		Name:         a.Name,
		Description:  a.Description,
		Kind:         domain.KindName(strings.ToLower(a.Kind)),
		Interval:     domain.Interval(strings.ToLower(a.Interval)),
		Desirability: shared,
		Duration:     a.Duration,
		Times:        a.Times,
		Desirable:    a.Desirable,
		Min:          a.Min,
		Max:          a.Max,
	}
	if bp.Interval == "" {
		bp.Interval = domain.IntervalDaily
	}
	if bp.Kind == domain.KindHabit && bp.Times == 0 {
		bp.Times = 1
	}

	if len(a.Desirability) > 0 {
		weekly, err := a.Desirability.weekly()
		if err != nil {
			return domain.Blueprint{}, err
		}
		bp.Desirability = weekly
	}

	for _, d := range a.Days {
		wd, err := parseWeekday(d)
		if err != nil {
			return domain.Blueprint{}, err
		}
		bp.Days = append(bp.Days, wd)
	}

	for _, c := range a.Constraints {
		constraint, err := c.constraint()
		if err != nil {
			return domain.Blueprint{}, fmt.Errorf("%q: %w", a.Name, err)
		}
		bp.Constraints = append(bp.Constraints, constraint)
	}
	return bp, nil
}

func (c constraintDoc) constraint() (domain.Constraint, error) {
	set := 0
	var out domain.Constraint
	if c.TimeSlot != nil {
		set++
		wd, err := parseWeekday(c.TimeSlot.Weekday)
		if err != nil {
			return nil, err
		}
		window, err := parseWindow(c.TimeSlot.From + "-" + c.TimeSlot.To)
		if err != nil {
			return nil, err
		}
		out = domain.NewTimeSlot(wd, window)
	}
	if c.MinimumSession > 0 {
		set++
		out = domain.NewMinimumSession(c.MinimumSession)
	}
	if c.TimeOfDay != nil {
		set++
		at, err := domain.ParseClockTime(c.TimeOfDay.At)
		if err != nil {
			return nil, invalid("time_of_day: %v", err)
		}
		if c.TimeOfDay.Duration <= 0 {
			return nil, invalid("time_of_day at %s: duration required", c.TimeOfDay.At)
		}
		out = domain.NewTimeOfDay(at, c.TimeOfDay.Duration)
	}
	if set != 1 {
		return nil, invalid("constraint must set exactly one of time_slot, minimum_session, time_of_day")
	}
	return out, nil
}

func (g goalDoc) goal(activityID domain.ActivityID) (goals.Goal, error) {
	unit, err := goals.ParseTimeUnit(g.Unit)
	if err != nil {
		return goals.Goal{}, err
	}
	ideal, err := goals.NewPeriod(g.Ideal, unit)
	if err != nil {
		return goals.Goal{}, err
	}
	var atLeast *goals.Period
	if g.AtLeast != nil {
		p, err := goals.NewPeriod(*g.AtLeast, unit)
		if err != nil {
			return goals.Goal{}, err
		}
		atLeast = &p
	}
	return goals.NewGoal(goals.GoalIDFor(activityID), atLeast, ideal, goals.Measure(strings.ToLower(g.Measure)))
}
