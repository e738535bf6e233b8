package rules

import (
	"errors"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/reference"
)

const defaultVolumeQuantile = 0.6

type windowQuantile func(*observation.Table, observation.Anchor, reference.Measure, float64, bool) (float64, error)

// WeeklyVolumeVsYear fires when the anchor week's total is strictly above the
// trailing-year quantile of weekly totals.
func WeeklyVolumeVsYear(t *observation.Table, c observation.Category, cfg Config) (Message, bool, error) {
	return weeklyVolume(t, c, cfg, KindWeeklyVolumeVsYear, reference.TrailingYearQuantile)
}

// WeeklyVolumeVsYTD fires when the anchor week's total is strictly above the
// quantile of the earlier weeks of the same year.
func WeeklyVolumeVsYTD(t *observation.Table, c observation.Category, cfg Config) (Message, bool, error) {
	return weeklyVolume(t, c, cfg, KindWeeklyVolumeVsYTD, reference.YearToDateQuantile)
}

func weeklyVolume(t *observation.Table, c observation.Category, cfg Config, kind Kind, window windowQuantile) (Message, bool, error) {
	measure := cfg.measure()
	if !measure.Valid() {
		return Message{}, false, configError(kind, "unknown measure "+string(measure))
	}
	t = t.ForCategory(c)
	anchor, ok := t.Anchor()
	if !ok {
		return Message{}, false, nil
	}

	current := reference.CurrentWeekTotal(t, anchor, measure)
	threshold, err := window(t, anchor, measure, cfg.quantile(defaultVolumeQuantile), cfg.FillEmptyWeeks)
	if errors.Is(err, reference.ErrUndefinedReference) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, configError(kind, err.Error())
	}
	if current <= threshold {
		return Message{}, false, nil
	}

	var amount any = current
	if measure == reference.MeasureCount {
		amount = int(current)
	}
	if kind == KindWeeklyVolumeVsYTD {
		return Message{
			Key:  messageKey("weekly_volume", "ytd", measureSuffix(measure)),
			Args: []any{c, Year(anchor.ISOYear), amount, threshold},
		}, true, nil
	}
	return Message{
		Key:  messageKey("weekly_volume", "year", measureSuffix(measure)),
		Args: []any{c, amount, threshold},
	}, true, nil
}
