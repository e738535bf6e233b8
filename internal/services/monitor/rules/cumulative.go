package rules

import (
	"math"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/reference"
)

// yearProgress splits this year's running total around the anchor day.
type yearProgress struct {
	before   float64 // rows of the period dated before the anchor day
	anchor   float64 // rows on the anchor day, aggregated once
	previous float64 // the same period one year earlier
}

func (p yearProgress) after() float64 {
	return p.before + p.anchor
}

// progress aggregates the anchor's calendar year, optionally restricted to
// the anchor's month, and the same period of the previous year.
func progress(t *observation.Table, anchor observation.Anchor, measure reference.Measure, sameMonth bool) yearProgress {
	var p yearProgress
	for _, o := range t.Rows() {
		if sameMonth && o.Month != anchor.Month {
			continue
		}
		var amount float64
		switch {
		case measure == reference.MeasureCount:
			amount = 1
		case o.HasValue:
			amount = o.Value
		}
		switch {
		case o.Year == anchor.Year-1:
			p.previous += amount
		case o.Year != anchor.Year:
		case o.Date().Before(anchor.Date):
			p.before += amount
		case o.Date().Equal(anchor.Date):
			p.anchor += amount
		}
	}
	return p
}

// Milestone fires when the anchor day pushes this year's cumulative distance
// across a new multiple of cfg.Interval: floor(after/interval)*interval > before.
func Milestone(t *observation.Table, c observation.Category, cfg Config) (Message, bool, error) {
	if cfg.Interval <= 0 || math.IsNaN(cfg.Interval) || math.IsInf(cfg.Interval, 0) {
		return Message{}, false, configError(KindMilestone, "interval must be positive")
	}
	if cfg.Interval != math.Trunc(cfg.Interval) {
		return Message{}, false, configError(KindMilestone, "interval must be a whole number")
	}
	t = t.ForCategory(c)
	anchor, ok := t.Anchor()
	if !ok {
		return Message{}, false, nil
	}
	p := progress(t, anchor, reference.MeasureSum, false)
	threshold := math.Floor(p.after()/cfg.Interval) * cfg.Interval
	if threshold <= p.before {
		return Message{}, false, nil
	}
	return Message{
		Key:  messageKey("milestone"),
		Args: []any{threshold, c},
	}, true, nil
}

// CatchUpYear fires on the day this year's total reaches the whole previous
// year's total.
func CatchUpYear(t *observation.Table, c observation.Category, cfg Config) (Message, bool, error) {
	return catchUp(t, c, cfg, KindCatchUpYear, false)
}

// CatchUpMonth fires on the day this month's total reaches the total of the
// same month one year earlier.
func CatchUpMonth(t *observation.Table, c observation.Category, cfg Config) (Message, bool, error) {
	return catchUp(t, c, cfg, KindCatchUpMonth, true)
}

func catchUp(t *observation.Table, c observation.Category, cfg Config, kind Kind, sameMonth bool) (Message, bool, error) {
	measure := cfg.measure()
	if !measure.Valid() {
		return Message{}, false, configError(kind, "unknown measure "+string(measure))
	}
	t = t.ForCategory(c)
	anchor, ok := t.Anchor()
	if !ok {
		return Message{}, false, nil
	}
	p := progress(t, anchor, measure, sameMonth)
	if !(p.before < p.previous && p.after() >= p.previous) {
		return Message{}, false, nil
	}

	period := "year"
	if sameMonth {
		period = "month"
	}
	var reached any = p.previous
	if measure == reference.MeasureCount {
		reached = int(p.previous)
	}
	return Message{
		Key:  messageKey("catch_up", period, measureSuffix(measure)),
		Args: []any{c, Year(anchor.Year - 1), reached},
	}, true, nil
}

const defaultStreakDays = 3

// StreakLength counts consecutive calendar days with at least one row of
// category c, walking back from the anchor day and stopping at the first gap.
func StreakLength(t *observation.Table, c observation.Category) int {
	t = t.ForCategory(c)
	anchor, ok := t.Anchor()
	if !ok {
		return 0
	}
	days := make(map[int64]struct{})
	for _, d := range t.Dates() {
		days[d.Unix()] = struct{}{}
	}
	n := 0
	for d := anchor.Date; ; d = d.AddDate(0, 0, -1) {
		if _, ok := days[d.Unix()]; !ok {
			return n
		}
		n++
	}
}

// Streak fires when the streak ending on the anchor day is at least
// cfg.MinDays long, reporting the actual length.
func Streak(t *observation.Table, c observation.Category, cfg Config) (Message, bool, error) {
	if cfg.MinDays < 0 {
		return Message{}, false, configError(KindStreak, "min_days must not be negative")
	}
	minDays := cfg.MinDays
	if minDays == 0 {
		minDays = defaultStreakDays
	}
	n := StreakLength(t, c)
	if n == 0 || n < minDays {
		return Message{}, false, nil
	}
	return Message{
		Key:  messageKey("streak"),
		Args: []any{n, c},
	}, true, nil
}
