package definitions

import "time"

// file mirrors the YAML plan document.
type file struct {
	Timezone     string          `yaml:"timezone"`
	Epoch        string          `yaml:"epoch"`
	Cycles       []cycleDoc      `yaml:"cycles"`
	Breaks       []breakDoc      `yaml:"breaks"`
	Desirability desirabilityDoc `yaml:"desirability"`
	Activities   []activityDoc   `yaml:"activities"`
}

type cycleDoc struct {
	Start  string `yaml:"start"`
	Days   int    `yaml:"days"`
	Repeat int    `yaml:"repeat"`
}

// breakDoc is an inclusive range of dates. A single date may be given as from.
type breakDoc struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// desirabilityDoc maps a day selector to ranked windows. Each rank is a
// list of "HH:MM-HH:MM" windows; the first rank is the most desirable.
// Selectors are weekday names, "weekdays", "weekends" and "default".
type desirabilityDoc map[string][][]string

type activityDoc struct {
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	Kind         string          `yaml:"kind"`
	Interval     string          `yaml:"interval"`
	Days         []string        `yaml:"days"`
	Desirability desirabilityDoc `yaml:"desirability"`
	Constraints  []constraintDoc `yaml:"constraints"`

	Duration time.Duration `yaml:"duration"`
	Times    int           `yaml:"times"`

	Desirable time.Duration  `yaml:"desirable"`
	Min       *time.Duration `yaml:"min"`
	Max       *time.Duration `yaml:"max"`

	Goal *goalDoc `yaml:"goal"`
}

// constraintDoc sets exactly one of its fields.
type constraintDoc struct {
	TimeSlot       *timeSlotDoc  `yaml:"time_slot"`
	MinimumSession time.Duration `yaml:"minimum_session"`
	TimeOfDay      *timeOfDayDoc `yaml:"time_of_day"`
}

type timeSlotDoc struct {
	Weekday string `yaml:"weekday"`
	From    string `yaml:"from"`
	To      string `yaml:"to"`
}

type timeOfDayDoc struct {
	At       string        `yaml:"at"`
	Duration time.Duration `yaml:"duration"`
}

type goalDoc struct {
	AtLeast *uint32 `yaml:"at_least"`
	Ideal   uint32  `yaml:"ideal"`
	Unit    string  `yaml:"unit"`
	Measure string  `yaml:"measure"`
}
