// Package rules holds the evaluators that turn an observation table into
// notable-condition messages. Evaluators are pure functions of the table, the
// category and an immutable Config; they return at most one message.
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/reference"
)

// Kind identifies an evaluator.
type Kind string

const (
	KindWeeklyVolumeVsYear Kind = "weekly_volume_vs_year"
	KindWeeklyVolumeVsYTD  Kind = "weekly_volume_vs_ytd"
	KindMilestone          Kind = "milestone"
	KindCatchUpYear        Kind = "catch_up_year"
	KindCatchUpMonth       Kind = "catch_up_month"
	KindStreak             Kind = "streak"
	KindDailyDeviation     Kind = "daily_deviation"
	KindWeeklyDeviation    Kind = "weekly_deviation"
)

// Config parametrizes one registry entry. Zero fields take the evaluator's
// default.
type Config struct {
	Measure        reference.Measure `yaml:"measure,omitempty" json:"measure,omitempty"`
	Quantile       float64           `yaml:"quantile,omitempty" json:"quantile,omitempty"`
	FillEmptyWeeks bool              `yaml:"fill_empty_weeks,omitempty" json:"fill_empty_weeks,omitempty"`
	Interval       float64           `yaml:"interval,omitempty" json:"interval,omitempty"`
	MinDays        int               `yaml:"min_days,omitempty" json:"min_days,omitempty"`
	Days           int               `yaml:"days,omitempty" json:"days,omitempty"`
	Negative       bool              `yaml:"negative,omitempty" json:"negative,omitempty"`
}

func (c Config) measure() reference.Measure {
	if c.Measure == "" {
		return reference.MeasureSum
	}
	return c.Measure
}

func (c Config) quantile(fallback float64) float64 {
	if c.Quantile == 0 {
		return fallback
	}
	return c.Quantile
}

// Year is a calendar year message argument. It prints through %s so
// localized printers do not group its digits.
type Year int

func (y Year) String() string {
	return strconv.Itoa(int(y))
}

// Message is a catalog key plus its format arguments. Arguments of type
// observation.Category are localized when rendered.
type Message struct {
	Key      string
	Args     []any
	Kind     Kind
	Category observation.Category
}

// DedupeKey identifies the message independently of its arguments.
func (m Message) DedupeKey() string {
	return string(m.Category) + "|" + m.Key
}

// Evaluator inspects the rows of category c in t.
type Evaluator func(t *observation.Table, c observation.Category, cfg Config) (Message, bool, error)

var evaluators = map[Kind]Evaluator{
	KindWeeklyVolumeVsYear: WeeklyVolumeVsYear,
	KindWeeklyVolumeVsYTD:  WeeklyVolumeVsYTD,
	KindMilestone:          Milestone,
	KindCatchUpYear:        CatchUpYear,
	KindCatchUpMonth:       CatchUpMonth,
	KindStreak:             Streak,
	KindDailyDeviation:     DailyDeviation,
	KindWeeklyDeviation:    WeeklyDeviation,
}

// Lookup returns the evaluator for kind.
func Lookup(kind Kind) (Evaluator, bool) {
	e, ok := evaluators[kind]
	return e, ok
}

// Spec pairs an evaluator with its configuration.
type Spec struct {
	Kind   Kind   `yaml:"kind" json:"kind"`
	Config Config `yaml:",inline" json:"config"`
}

func (s Spec) String() string {
	return fmt.Sprintf("%s%+v", s.Kind, s.Config)
}

// Validate checks the configuration without evaluating anything.
func (s Spec) Validate() error {
	if _, ok := evaluators[s.Kind]; !ok {
		return configError(s.Kind, "unknown rule kind")
	}
	cfg := s.Config
	if cfg.Measure != "" && !cfg.Measure.Valid() {
		return configError(s.Kind, "unknown measure "+string(cfg.Measure))
	}
	if cfg.Quantile < 0 || cfg.Quantile > 1 {
		return configError(s.Kind, "quantile outside [0, 1]")
	}
	switch s.Kind {
	case KindMilestone:
		if cfg.Interval <= 0 {
			return configError(s.Kind, "interval must be positive")
		}
		if cfg.Interval != math.Trunc(cfg.Interval) {
			return configError(s.Kind, "interval must be a whole number")
		}
	case KindStreak:
		if cfg.MinDays < 0 {
			return configError(s.Kind, "min_days must not be negative")
		}
	case KindDailyDeviation:
		if _, ok := bandWidths[cfg.Days]; !ok {
			return configError(s.Kind, "days must be 1 or 2")
		}
	}
	return nil
}

// Evaluate runs the spec against t for category c.
func (s Spec) Evaluate(t *observation.Table, c observation.Category) (Message, bool, error) {
	evaluate, ok := evaluators[s.Kind]
	if !ok {
		return Message{}, false, configError(s.Kind, "unknown rule kind")
	}
	msg, ok, err := evaluate(t, c, s.Config)
	if err != nil || !ok {
		return Message{}, false, err
	}
	msg.Kind = s.Kind
	msg.Category = c
	return msg, true, nil
}

func measureSuffix(m reference.Measure) string {
	if m == reference.MeasureCount {
		return "count"
	}
	return "distance"
}

func messageKey(parts ...string) string {
	return "monitor." + strings.Join(parts, ".")
}
