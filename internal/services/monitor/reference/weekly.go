package reference

import (
	"sort"
	"time"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
)

// trailingDays is the length of the rolling window.
const trailingDays = 365

// WeekKey identifies an ISO week.
type WeekKey struct {
	ISOYear int
	Week    int
}

func (k WeekKey) before(other WeekKey) bool {
	if k.ISOYear != other.ISOYear {
		return k.ISOYear < other.ISOYear
	}
	return k.Week < other.Week
}

// WeekTotal is the aggregate of one ISO week.
type WeekTotal struct {
	WeekKey
	Total float64
}

// WeeklyTotals aggregates the rows accepted by keep per ISO week, oldest first.
// A nil keep accepts every row.
func WeeklyTotals(t *observation.Table, measure Measure, keep func(observation.Observation) bool) []WeekTotal {
	totals := map[WeekKey]float64{}
	for _, o := range t.Rows() {
		if keep != nil && !keep(o) {
			continue
		}
		key := WeekKey{ISOYear: o.ISOYear, Week: o.Week}
		switch measure {
		case MeasureCount:
			totals[key]++
		default:
			if o.HasValue {
				totals[key] += o.Value
			} else if _, ok := totals[key]; !ok {
				totals[key] = 0
			}
		}
	}
	out := make([]WeekTotal, 0, len(totals))
	for key, total := range totals {
		out = append(out, WeekTotal{WeekKey: key, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j].WeekKey) })
	return out
}

// CurrentWeekTotal aggregates the rows of the anchor's ISO week.
func CurrentWeekTotal(t *observation.Table, anchor observation.Anchor, measure Measure) float64 {
	var total float64
	for _, w := range WeeklyTotals(t, measure, anchor.InWeek) {
		total += w.Total
	}
	return total
}

// TrailingYearQuantile is the q-quantile of the weekly totals of rows dated
// within 365 days before the anchor date, leaving out the anchor week itself.
// With fillEmptyWeeks, weeks of the window without rows count as zero.
func TrailingYearQuantile(t *observation.Table, anchor observation.Anchor, measure Measure, q float64, fillEmptyWeeks bool) (float64, error) {
	start := anchor.Date.AddDate(0, 0, -trailingDays)
	keep := func(o observation.Observation) bool {
		return !o.Date().Before(start) && !anchor.InWeek(o)
	}
	totals := WeeklyTotals(t, measure, keep)
	if fillEmptyWeeks {
		totals = fillWeeks(totals, weeksBetween(start, anchor.Date))
	}
	return windowQuantile(totals, q, "trailing year")
}

// YearToDateQuantile is the q-quantile of the weekly totals of the anchor's
// ISO year strictly before the anchor week.
func YearToDateQuantile(t *observation.Table, anchor observation.Anchor, measure Measure, q float64, fillEmptyWeeks bool) (float64, error) {
	keep := func(o observation.Observation) bool {
		return o.ISOYear == anchor.ISOYear && o.Week < anchor.Week
	}
	totals := WeeklyTotals(t, measure, keep)
	if fillEmptyWeeks {
		totals = fillWeeks(totals, weeksBetween(firstISOWeekStart(anchor.ISOYear), anchor.Date))
	}
	return windowQuantile(totals, q, "year to date")
}

func windowQuantile(totals []WeekTotal, q float64, window string) (float64, error) {
	if err := checkLevel(q); err != nil {
		return 0, err
	}
	if len(totals) == 0 {
		return 0, &UndefinedReferenceError{Window: window}
	}
	values := make([]float64, len(totals))
	for i, w := range totals {
		values[i] = w.Total
	}
	return Quantile(values, q)
}

// weeksBetween lists the ISO weeks from the week of from up to, excluding,
// the week of to.
func weeksBetween(from, to time.Time) []WeekKey {
	var out []WeekKey
	endYear, endWeek := to.ISOWeek()
	end := WeekKey{ISOYear: endYear, Week: endWeek}
	for d := mondayOf(from); ; d = d.AddDate(0, 0, 7) {
		y, w := d.ISOWeek()
		key := WeekKey{ISOYear: y, Week: w}
		if !key.before(end) {
			return out
		}
		out = append(out, key)
	}
}

func fillWeeks(totals []WeekTotal, window []WeekKey) []WeekTotal {
	seen := make(map[WeekKey]struct{}, len(totals))
	for _, w := range totals {
		seen[w.WeekKey] = struct{}{}
	}
	for _, key := range window {
		if _, ok := seen[key]; !ok {
			totals = append(totals, WeekTotal{WeekKey: key})
		}
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].before(totals[j].WeekKey) })
	return totals
}

func mondayOf(d time.Time) time.Time {
	d = observation.DateOf(d)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// firstISOWeekStart returns the Monday of ISO week 1 of isoYear.
func firstISOWeekStart(isoYear int) time.Time {
	return mondayOf(time.Date(isoYear, time.January, 4, 0, 0, 0, 0, time.UTC))
}
