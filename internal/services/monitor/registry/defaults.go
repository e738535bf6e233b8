package registry

import (
	"sync"

	"github.com/lifesignal/monitor/internal/services/monitor/charts"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/reference"
	"github.com/lifesignal/monitor/internal/services/monitor/rules"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := New(defaultEntries()...)
		if err != nil {
			panic("registry: invalid default entries: " + err.Error())
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

func rule(kind rules.Kind, cfg rules.Config) rules.Spec {
	return rules.Spec{Kind: kind, Config: cfg}
}

var (
	sum   = rules.Config{Measure: reference.MeasureSum}
	count = rules.Config{Measure: reference.MeasureCount}
)

func distanceDaily(milestone float64) []rules.Spec {
	return []rules.Spec{
		rule(rules.KindCatchUpYear, sum),
		rule(rules.KindCatchUpMonth, sum),
		rule(rules.KindMilestone, rules.Config{Interval: milestone}),
		rule(rules.KindCatchUpYear, count),
		rule(rules.KindCatchUpMonth, count),
		rule(rules.KindStreak, rules.Config{MinDays: 3}),
	}
}

func defaultEntries() []Entry {
	entries := []Entry{
		{
			Category: observation.Running, Interval: Daily,
			Rules: distanceDaily(100),
		},
		{
			Category: observation.Running, Interval: Weekly,
			Rules: []rules.Spec{
				rule(rules.KindWeeklyVolumeVsYear, sum),
				rule(rules.KindWeeklyVolumeVsYTD, sum),
				rule(rules.KindWeeklyVolumeVsYear, count),
				rule(rules.KindWeeklyVolumeVsYTD, count),
			},
			Charts: []charts.Spec{
				{Kind: charts.KindCumulativeDistance, YearsBack: 2, Baselines: []float64{1400, 1600}},
			},
		},
		{
			Category: observation.Cycling, Interval: Daily,
			Rules: distanceDaily(250),
		},
		{
			Category: observation.Cycling, Interval: Weekly,
			Rules: []rules.Spec{
				rule(rules.KindWeeklyVolumeVsYear, sum),
				rule(rules.KindWeeklyVolumeVsYTD, sum),
			},
			Charts: []charts.Spec{
				{Kind: charts.KindCumulativeDistance, YearsBack: 2, Baselines: []float64{2000}},
			},
		},
		{
			Category: observation.Gym, Interval: Daily,
			Rules: []rules.Spec{
				rule(rules.KindCatchUpYear, count),
				rule(rules.KindCatchUpMonth, count),
				rule(rules.KindStreak, rules.Config{MinDays: 3}),
			},
		},
		{
			Category: observation.Gym, Interval: Weekly,
			Rules: []rules.Spec{
				rule(rules.KindWeeklyVolumeVsYear, count),
				rule(rules.KindWeeklyVolumeVsYTD, count),
			},
		},
		{
			Category: observation.Swimming, Interval: Daily,
			Rules: []rules.Spec{rule(rules.KindStreak, rules.Config{MinDays: 2})},
		},
		{
			Category: observation.Swimming, Interval: Weekly,
			Charts: []charts.Spec{{Kind: charts.KindCumulativeDistance, YearsBack: 1}},
		},
	}
	for _, dim := range observation.Dimensions() {
		entries = append(entries,
			Entry{
				Category: dim, Interval: Daily,
				Rules: []rules.Spec{
					rule(rules.KindDailyDeviation, rules.Config{Days: 2, Negative: true}),
					rule(rules.KindDailyDeviation, rules.Config{Days: 1, Negative: true}),
					rule(rules.KindDailyDeviation, rules.Config{Days: 1}),
				},
			},
			Entry{
				Category: dim, Interval: Weekly,
				Rules: []rules.Spec{
					rule(rules.KindWeeklyDeviation, rules.Config{Negative: true}),
					rule(rules.KindWeeklyDeviation, rules.Config{}),
				},
				Charts: []charts.Spec{{Kind: charts.KindWeeklyScores}},
			},
		)
	}
	return entries
}
