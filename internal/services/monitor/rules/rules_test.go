package rules

import (
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/lifesignal/monitor/internal/platform/errors"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/reference"
)

func TestMilestoneCrossing(t *testing.T) {
	tests := []struct {
		name      string
		records   []observation.RawRecord
		wantFire  bool
		threshold float64
	}{
		{
			name: "same-day runs cross 100 together",
			records: []observation.RawRecord{
				rec("2023-12-30", "500", "running"),
				rec("2024-03-01T07:00:00Z", "95", "running"),
				rec("2024-03-05T07:00:00Z", "4", "running"),
				rec("2024-03-05T18:00:00Z", "6", "running"),
			},
			wantFire:  true,
			threshold: 100,
		},
		{
			name: "95 to 99 stays below",
			records: []observation.RawRecord{
				rec("2024-03-01", "95", "running"),
				rec("2024-03-05", "4", "running"),
			},
		},
		{
			name: "first run of the year below interval",
			records: []observation.RawRecord{
				rec("2023-12-31", "99", "running"),
				rec("2024-01-01", "10", "running"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok, err := Milestone(mustTable(t, tt.records...), observation.Running, Config{Interval: 100})
			if err != nil {
				t.Fatalf("milestone: %v", err)
			}
			if ok != tt.wantFire {
				t.Fatalf("fired = %v, want %v", ok, tt.wantFire)
			}
			if !ok {
				return
			}
			if msg.Key != "monitor.milestone" {
				t.Fatalf("key = %q", msg.Key)
			}
			if !reflect.DeepEqual(msg.Args, []any{tt.threshold, observation.Running}) {
				t.Fatalf("args = %v, want [%v running]", msg.Args, tt.threshold)
			}
		})
	}
}

func TestMilestoneRejectsNonPositiveInterval(t *testing.T) {
	table := mustTable(t, rec("2024-03-01", "95", "running"))
	_, _, err := Milestone(table, observation.Running, Config{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	if apperrors.CodeOf(err) != apperrors.CodeInvalidRuleConfig {
		t.Fatalf("code = %s", apperrors.CodeOf(err))
	}
}

func TestMilestoneRejectsFractionalInterval(t *testing.T) {
	table := mustTable(t, rec("2024-03-01", "40", "running"))
	_, _, err := Milestone(table, observation.Running, Config{Interval: 12.5})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestCatchUpYear(t *testing.T) {
	table := mustTable(t,
		rec("2023-04-01", "20", "running"),
		rec("2023-09-01", "30", "running"),
		rec("2024-01-10", "45", "running"),
		rec("2024-02-01", "5", "running"),
	)

	msg, ok, err := CatchUpYear(table, observation.Running, Config{Measure: reference.MeasureSum})
	if err != nil || !ok {
		t.Fatalf("catch up distance = (%v, %v), want message", ok, err)
	}
	if msg.Key != "monitor.catch_up.year.distance" || !reflect.DeepEqual(msg.Args, []any{observation.Running, Year(2023), 50.0}) {
		t.Fatalf("message = %+v", msg)
	}

	again, okAgain, err := CatchUpYear(table, observation.Running, Config{Measure: reference.MeasureSum})
	if err != nil || okAgain != ok || !reflect.DeepEqual(again, msg) {
		t.Fatalf("re-evaluation differs: %+v %v %v", again, okAgain, err)
	}

	msg, ok, err = CatchUpYear(table, observation.Running, Config{Measure: reference.MeasureCount})
	if err != nil || !ok {
		t.Fatalf("catch up count = (%v, %v), want message", ok, err)
	}
	if msg.Key != "monitor.catch_up.year.count" || !reflect.DeepEqual(msg.Args, []any{observation.Running, Year(2023), 2}) {
		t.Fatalf("message = %+v", msg)
	}
}

func TestCatchUpYearOnlyFiresOnCrossingDay(t *testing.T) {
	table := mustTable(t,
		rec("2023-04-01", "20", "running"),
		rec("2024-01-10", "45", "running"),
		rec("2024-02-01", "5", "running"),
	)
	if _, ok, err := CatchUpYear(table, observation.Running, Config{}); err != nil || ok {
		t.Fatalf("already surpassed = (%v, %v), want no message", ok, err)
	}
}

func TestCatchUpMonthCountsAnchorDayRows(t *testing.T) {
	table := mustTable(t,
		rec("2023-02-03", "", "gym"),
		rec("2023-02-10", "", "gym"),
		rec("2023-02-20", "", "gym"),
		rec("2023-03-01", "", "gym"),
		rec("2024-02-05", "", "gym"),
		rec("2024-02-12T07:00:00Z", "", "gym"),
		rec("2024-02-12T18:00:00Z", "", "gym"),
	)
	msg, ok, err := CatchUpMonth(table, observation.Gym, Config{Measure: reference.MeasureCount})
	if err != nil || !ok {
		t.Fatalf("catch up month = (%v, %v), want message", ok, err)
	}
	if msg.Key != "monitor.catch_up.month.count" || !reflect.DeepEqual(msg.Args, []any{observation.Gym, Year(2023), 3}) {
		t.Fatalf("message = %+v", msg)
	}
}

func TestStreak(t *testing.T) {
	table := mustTable(t,
		rec("2024-05-01", "5", "running"),
		rec("2024-05-03", "5", "running"),
		rec("2024-05-04", "5", "running"),
		rec("2024-05-05T06:00:00Z", "5", "running"),
		rec("2024-05-05T19:00:00Z", "5", "running"),
		rec("2024-05-04", "30", "cycling"),
		rec("2024-05-02", "30", "cycling"),
	)
	if got := StreakLength(table, observation.Running); got != 3 {
		t.Fatalf("streak length = %d, want 3", got)
	}

	msg, ok, err := Streak(table, observation.Running, Config{MinDays: 3})
	if err != nil || !ok {
		t.Fatalf("streak = (%v, %v), want message", ok, err)
	}
	if msg.Key != "monitor.streak" || !reflect.DeepEqual(msg.Args, []any{3, observation.Running}) {
		t.Fatalf("message = %+v", msg)
	}
	if _, ok, _ := Streak(table, observation.Running, Config{MinDays: 4}); ok {
		t.Fatal("min 4 must not fire for a streak of 3")
	}
	if _, ok, _ := Streak(table, observation.Running, Config{}); !ok {
		t.Fatal("default minimum is 3")
	}
	if got := StreakLength(table, observation.Cycling); got != 1 {
		t.Fatalf("cycling streak = %d, want 1", got)
	}
}

func TestWeeklyVolumeVsYear(t *testing.T) {
	history := []observation.RawRecord{
		rec("2023-05-10", "40", "running"),
		rec("2024-04-22", "10", "running"),
		rec("2024-04-29", "20", "running"),
	}

	above := mustTable(t, append(history, rec("2024-05-06", "10", "running"), rec("2024-05-08", "20", "running"))...)
	msg, ok, err := WeeklyVolumeVsYear(above, observation.Running, Config{Quantile: 0.6})
	if err != nil || !ok {
		t.Fatalf("weekly volume = (%v, %v), want message", ok, err)
	}
	if msg.Key != "monitor.weekly_volume.year.distance" {
		t.Fatalf("key = %q", msg.Key)
	}
	if got := msg.Args[1]; got != 30.0 {
		t.Fatalf("weekly total = %v, want 30", got)
	}

	atThreshold := mustTable(t, append(history, rec("2024-05-08", "20", "running"))...)
	if _, ok, err := WeeklyVolumeVsYear(atThreshold, observation.Running, Config{Quantile: 0.5}); err != nil || ok {
		t.Fatalf("at threshold = (%v, %v), want no message", ok, err)
	}
}

func TestWeeklyVolumeVsYTDCount(t *testing.T) {
	table := mustTable(t,
		rec("2024-04-22", "", "gym"),
		rec("2024-04-29", "", "gym"),
		rec("2024-05-06", "", "gym"),
		rec("2024-05-07", "", "gym"),
	)
	msg, ok, err := WeeklyVolumeVsYTD(table, observation.Gym, Config{Measure: reference.MeasureCount})
	if err != nil || !ok {
		t.Fatalf("weekly count = (%v, %v), want message", ok, err)
	}
	if msg.Key != "monitor.weekly_volume.ytd.count" || !reflect.DeepEqual(msg.Args, []any{observation.Gym, Year(2024), 2, 1.0}) {
		t.Fatalf("message = %+v", msg)
	}
}

func TestWeeklyVolumeWithoutHistoryIsSilent(t *testing.T) {
	table := mustTable(t, rec("2024-05-06", "10", "running"))
	for _, evaluate := range []Evaluator{WeeklyVolumeVsYear, WeeklyVolumeVsYTD} {
		if _, ok, err := evaluate(table, observation.Running, Config{}); err != nil || ok {
			t.Fatalf("no history = (%v, %v), want silence", ok, err)
		}
	}
}

func TestEveryRuleIsSilentOnEmptyOrMissingData(t *testing.T) {
	empty := mustTable(t)
	unscored := mustTable(t,
		rec("2024-05-06", "x", "sleep"),
		rec("2024-05-07", "x", "sleep"),
	)
	specs := []Spec{
		{Kind: KindWeeklyVolumeVsYear},
		{Kind: KindWeeklyVolumeVsYTD, Config: Config{Measure: reference.MeasureCount}},
		{Kind: KindMilestone, Config: Config{Interval: 100}},
		{Kind: KindCatchUpYear},
		{Kind: KindCatchUpMonth, Config: Config{Measure: reference.MeasureCount}},
		{Kind: KindStreak, Config: Config{MinDays: 3}},
		{Kind: KindDailyDeviation, Config: Config{Days: 1, Negative: true}},
		{Kind: KindDailyDeviation, Config: Config{Days: 2}},
		{Kind: KindWeeklyDeviation, Config: Config{Negative: true}},
	}
	for _, spec := range specs {
		for name, table := range map[string]*observation.Table{"empty": empty, "unscored": unscored} {
			msg, ok, err := spec.Evaluate(table, observation.Sleep)
			if err != nil {
				t.Fatalf("%s on %s table: %v", spec.Kind, name, err)
			}
			if ok && spec.Kind != KindStreak {
				t.Fatalf("%s on %s table fired: %+v", spec.Kind, name, msg)
			}
		}
	}
}

func TestSpecEvaluateSetsKindAndCategory(t *testing.T) {
	table := mustTable(t, rec("2024-05-04", "", "gym"), rec("2024-05-05", "", "gym"))
	msg, ok, err := Spec{Kind: KindStreak, Config: Config{MinDays: 2}}.Evaluate(table, observation.Gym)
	if err != nil || !ok {
		t.Fatalf("evaluate = (%v, %v), want message", ok, err)
	}
	if msg.Kind != KindStreak || msg.Category != observation.Gym {
		t.Fatalf("message = %+v", msg)
	}
	if got, want := msg.DedupeKey(), "gym|monitor.streak"; got != want {
		t.Fatalf("dedupe key = %q, want %q", got, want)
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		spec    Spec
		wantErr bool
	}{
		{spec: Spec{Kind: KindMilestone, Config: Config{Interval: 250}}},
		{spec: Spec{Kind: KindMilestone}, wantErr: true},
		{spec: Spec{Kind: KindMilestone, Config: Config{Interval: 12.5}}, wantErr: true},
		{spec: Spec{Kind: KindDailyDeviation, Config: Config{Days: 2}}},
		{spec: Spec{Kind: KindDailyDeviation, Config: Config{Days: 3}}, wantErr: true},
		{spec: Spec{Kind: KindStreak, Config: Config{MinDays: -1}}, wantErr: true},
		{spec: Spec{Kind: KindWeeklyVolumeVsYear, Config: Config{Measure: "median"}}, wantErr: true},
		{spec: Spec{Kind: KindWeeklyDeviation, Config: Config{Quantile: 1.2}}, wantErr: true},
		{spec: Spec{Kind: "sunshine"}, wantErr: true},
	}
	for _, tt := range tests {
		err := tt.spec.Validate()
		if (err != nil) != tt.wantErr {
			t.Fatalf("Validate(%s) = %v, wantErr %v", tt.spec, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("Validate(%s) = %v, want ErrInvalidConfig", tt.spec, err)
		}
	}

	if _, _, err := (Spec{Kind: "sunshine"}).Evaluate(mustTable(t), observation.Running); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("unknown kind err = %v", err)
	}
}

func TestLookup(t *testing.T) {
	for _, kind := range []Kind{KindWeeklyVolumeVsYear, KindWeeklyVolumeVsYTD, KindMilestone, KindCatchUpYear, KindCatchUpMonth, KindStreak, KindDailyDeviation, KindWeeklyDeviation} {
		if _, ok := Lookup(kind); !ok {
			t.Fatalf("missing evaluator for %s", kind)
		}
	}
	if _, ok := Lookup("sunshine"); ok {
		t.Fatal("unexpected evaluator")
	}
}

func rec(ts, value, category string) observation.RawRecord {
	return observation.RawRecord{Timestamp: ts, Value: value, Category: category}
}

func mustTable(t *testing.T, records ...observation.RawRecord) *observation.Table {
	t.Helper()
	table, err := observation.Build(records)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return table
}
