package rules

import (
	"errors"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/reference"
)

const defaultDeviationQuantile = 0.4

// direction tells which side of the reference a value must fall on to count.
type direction int

const (
	below direction = iota
	above
)

type polarity struct {
	negative bool
	inverted bool
}

// directions is the single source of truth for how a negative or positive
// check flips on an inverted dimension. Both deviation rules read it.
var directions = map[polarity]direction{
	{negative: true, inverted: false}:  below,
	{negative: true, inverted: true}:   above,
	{negative: false, inverted: false}: above,
	{negative: false, inverted: true}:  below,
}

// bandWidths maps the daily window length to the sigma multiple.
var bandWidths = map[int]float64{
	1: 2,
	2: 1,
}

func polarityKey(negative bool) string {
	if negative {
		return "negative"
	}
	return "positive"
}

// HasDailyDeviation reports whether every value lies beyond the sigma band
// around mean on the side picked by (negative, inverted). Values below the
// band qualify with mean - w*sigma as an inclusive bound, values above with
// mean + w*sigma. A zero sigma never signals.
func HasDailyDeviation(values []float64, mean, sigma float64, days int, negative, inverted bool) bool {
	width, ok := bandWidths[days]
	if !ok || len(values) == 0 || sigma <= 0 {
		return false
	}
	dir := directions[polarity{negative: negative, inverted: inverted}]
	for _, v := range values {
		if dir == below && v > mean-width*sigma {
			return false
		}
		if dir == above && v < mean+width*sigma {
			return false
		}
	}
	return true
}

// DailyDeviation compares the last cfg.Days calendar days, ending on the
// anchor day, against the mean and population sigma of the whole history.
// Each of those days needs a score; several scores on one day are averaged.
func DailyDeviation(t *observation.Table, c observation.Category, cfg Config) (Message, bool, error) {
	if _, ok := bandWidths[cfg.Days]; !ok {
		return Message{}, false, configError(KindDailyDeviation, "days must be 1 or 2")
	}
	t = t.ForCategory(c)
	anchor, ok := t.Anchor()
	if !ok {
		return Message{}, false, nil
	}
	mean, sigma, err := reference.MeanSigma(t)
	if errors.Is(err, reference.ErrUndefinedReference) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, err
	}

	recent := make([]float64, 0, cfg.Days)
	for i := 0; i < cfg.Days; i++ {
		day := anchor.Date.AddDate(0, 0, -i)
		v, ok := dayMean(t, day.Unix())
		if !ok {
			return Message{}, false, nil
		}
		recent = append(recent, v)
	}
	if !HasDailyDeviation(recent, mean, sigma, cfg.Days, cfg.Negative, c.Inverted()) {
		return Message{}, false, nil
	}

	suffix := "1"
	if cfg.Days == 2 {
		suffix = "2"
	}
	return Message{
		Key:  messageKey("daily_deviation", polarityKey(cfg.Negative), suffix),
		Args: []any{c},
	}, true, nil
}

func dayMean(t *observation.Table, day int64) (float64, bool) {
	var sum float64
	var n int
	for _, o := range t.Rows() {
		if o.HasValue && o.Date().Unix() == day {
			sum += o.Value
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// HasWeeklyDeviation compares a weekly mean strictly against the band edge
// picked by (negative, inverted): below the lower edge or above the upper one.
func HasWeeklyDeviation(weekMean float64, band reference.Band, negative, inverted bool) bool {
	if directions[polarity{negative: negative, inverted: inverted}] == below {
		return weekMean < band.Lower
	}
	return weekMean > band.Upper
}

// WeeklyDeviation compares the mean score of the anchor's ISO week against
// the (q, 1-q) quantile band of the whole history, q defaulting to 0.4.
func WeeklyDeviation(t *observation.Table, c observation.Category, cfg Config) (Message, bool, error) {
	q := cfg.quantile(defaultDeviationQuantile)
	if q < 0 || q > 1 {
		return Message{}, false, configError(KindWeeklyDeviation, "quantile outside [0, 1]")
	}
	t = t.ForCategory(c)
	anchor, ok := t.Anchor()
	if !ok {
		return Message{}, false, nil
	}
	week := t.Filter(anchor.InWeek).Values()
	if len(week) == 0 {
		return Message{}, false, nil
	}
	band, err := reference.HistoricalQuantiles(t, q)
	if errors.Is(err, reference.ErrUndefinedReference) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, configError(KindWeeklyDeviation, err.Error())
	}

	var sum float64
	for _, v := range week {
		sum += v
	}
	if !HasWeeklyDeviation(sum/float64(len(week)), band, cfg.Negative, c.Inverted()) {
		return Message{}, false, nil
	}
	return Message{
		Key:  messageKey("weekly_deviation", polarityKey(cfg.Negative)),
		Args: []any{c},
	}, true, nil
}
