package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lifesignal/monitor/internal/services/monitor/charts"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/registry"
	"github.com/lifesignal/monitor/internal/services/monitor/rules"
)

func day(raw string) time.Time {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		panic(err)
	}
	return t
}

func testTable(t *testing.T) *observation.Table {
	t.Helper()
	table, err := observation.Build([]observation.RawRecord{
		{Timestamp: "2024-05-03T07:00:00Z", Value: "5", Category: "running"},
		{Timestamp: "2024-05-04T07:00:00Z", Value: "6", Category: "running"},
		{Timestamp: "2024-05-05T07:00:00Z", Value: "7", Category: "running"},
		{Timestamp: "2024-05-05T20:00:00Z", Value: "1", Category: "sleep"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return table
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New(
		registry.Entry{
			Category: observation.Running, Interval: registry.Daily,
			Rules: []rules.Spec{
				{Kind: rules.KindStreak, Config: rules.Config{MinDays: 3}},
				{Kind: rules.KindMilestone, Config: rules.Config{Interval: 100}},
			},
		},
		registry.Entry{
			Category: observation.Running, Interval: registry.Weekly,
			Charts: []charts.Spec{{Kind: charts.KindCumulativeDistance}},
		},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func TestHasRelevantObservation(t *testing.T) {
	table := testTable(t).ForCategory(observation.Running)
	tests := []struct {
		interval registry.Interval
		today    time.Time
		want     bool
	}{
		{registry.Daily, day("2024-05-05"), true},
		{registry.Daily, day("2024-05-06"), false},
		{registry.Weekly, day("2024-05-02"), true},
		{registry.Weekly, day("2024-05-06"), false},
		{"monthly", day("2024-05-05"), false},
	}
	for _, tc := range tests {
		if got := HasRelevantObservation(table, tc.interval, tc.today); got != tc.want {
			t.Fatalf("relevant(%s, %s) = %v, want %v", tc.interval, tc.today.Format("2006-01-02"), got, tc.want)
		}
	}
	if HasRelevantObservation(nil, registry.Daily, day("2024-05-05")) {
		t.Fatal("nil table should not be relevant")
	}
}

func TestEvaluateRunsRulesInOrder(t *testing.T) {
	e := New(testRegistry(t))
	result, err := e.Evaluate(context.Background(), Request{
		Table:    testTable(t),
		Category: observation.Running,
		Interval: registry.Daily,
		Today:    day("2024-05-05"),
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.Reason)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("messages = %+v, want one streak", result.Messages)
	}
	msg := result.Messages[0]
	if msg.Kind != rules.KindStreak || msg.Category != observation.Running || msg.Args[0] != 3 {
		t.Fatalf("message = %+v", msg)
	}
	if !result.Anchor.Date.Equal(day("2024-05-05")) {
		t.Fatalf("anchor = %v, want 2024-05-05", result.Anchor.Date)
	}
}

func TestEvaluateSkips(t *testing.T) {
	e := New(testRegistry(t))
	tests := []struct {
		name   string
		req    Request
		reason string
	}{
		{
			name:   "empty table",
			req:    Request{Table: testTable(t), Category: observation.Cycling, Interval: registry.Daily, Today: day("2024-05-05")},
			reason: ReasonEmptyTable,
		},
		{
			name:   "stale data",
			req:    Request{Table: testTable(t), Category: observation.Running, Interval: registry.Daily, Today: day("2024-05-07")},
			reason: ReasonNotRelevant,
		},
		{
			name:   "nothing registered",
			req:    Request{Table: testTable(t), Category: observation.Sleep, Interval: registry.Daily, Today: day("2024-05-05")},
			reason: ReasonNoRegistered,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := e.Evaluate(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if !result.Skipped || result.Reason != tc.reason {
				t.Fatalf("result = %+v, want skipped with %q", result, tc.reason)
			}
			if len(result.Messages) != 0 || len(result.Charts) != 0 {
				t.Fatalf("skipped result carries output: %+v", result)
			}
		})
	}
}

func TestEvaluateUsesClockWhenTodayIsZero(t *testing.T) {
	e := New(testRegistry(t), WithClock(func() time.Time { return day("2024-05-05").Add(9 * time.Hour) }))
	result, err := e.Evaluate(context.Background(), Request{
		Table: testTable(t), Category: observation.Running, Interval: registry.Daily,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.Reason)
	}
}

func TestEvaluateRejectsUnknownInterval(t *testing.T) {
	e := New(testRegistry(t))
	_, err := e.Evaluate(context.Background(), Request{
		Table: testTable(t), Category: observation.Running, Interval: "hourly",
	})
	if !errors.Is(err, registry.ErrUnknownInterval) {
		t.Fatalf("expected ErrUnknownInterval, got %v", err)
	}
}

func TestEvaluateDrawsCharts(t *testing.T) {
	dir := t.TempDir()
	e := New(testRegistry(t))
	result, err := e.Evaluate(context.Background(), Request{
		Table:    testTable(t),
		Category: observation.Running,
		Interval: registry.Weekly,
		Today:    day("2024-05-05"),
		ChartDir: dir,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Charts) != 1 || result.Charts[0] != filepath.Join(dir, "cumulative_running.png") {
		t.Fatalf("charts = %v", result.Charts)
	}
}

func TestEvaluateAllPreservesOrder(t *testing.T) {
	obs := &recordingObserver{}
	e := New(testRegistry(t), WithObserver(obs))
	table := testTable(t)
	reqs := []Request{
		{Table: table, Category: observation.Sleep, Interval: registry.Daily, Today: day("2024-05-05")},
		{Table: table, Category: observation.Running, Interval: registry.Daily, Today: day("2024-05-05")},
		{Table: table, Category: observation.Cycling, Interval: registry.Daily, Today: day("2024-05-05")},
	}
	results, err := e.EvaluateAll(context.Background(), reqs)
	if err != nil {
		t.Fatalf("evaluate all: %v", err)
	}
	if len(results) != len(reqs) {
		t.Fatalf("results = %d, want %d", len(results), len(reqs))
	}
	for i, req := range reqs {
		if results[i].Category != req.Category {
			t.Fatalf("result %d category = %s, want %s", i, results[i].Category, req.Category)
		}
	}
	if len(results[1].Messages) != 1 {
		t.Fatalf("running messages = %d, want 1", len(results[1].Messages))
	}

	counts := obs.counts()
	if counts[OutcomeEmitted] != 1 || counts[OutcomeSkipped] != 2 {
		t.Fatalf("outcomes = %v", counts)
	}
}

func TestEvaluateAllReturnsFirstError(t *testing.T) {
	e := New(testRegistry(t))
	_, err := e.EvaluateAll(context.Background(), []Request{
		{Table: testTable(t), Category: observation.Running, Interval: registry.Daily, Today: day("2024-05-05")},
		{Table: testTable(t), Category: observation.Running, Interval: "yearly"},
	})
	if !errors.Is(err, registry.ErrUnknownInterval) {
		t.Fatalf("expected ErrUnknownInterval, got %v", err)
	}
}

func TestEvaluateHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testRegistry(t)).Evaluate(ctx, Request{
		Table: testTable(t), Category: observation.Running, Interval: registry.Daily,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (o *recordingObserver) EvaluationFinished(_ registry.Key, outcome Outcome, _ Result, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) counts() map[Outcome]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := map[Outcome]int{}
	for _, outcome := range o.outcomes {
		out[outcome]++
	}
	return out
}

func TestHasRelevantObservationUsesWallClockDay(t *testing.T) {
	table, err := observation.Build([]observation.RawRecord{
		{Timestamp: "2024-03-05T00:30", Value: "5", Category: "running"},
		{Timestamp: "2024-03-10T18:00", Value: "5", Category: "cycling"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	rome := time.FixedZone("CET", 3600)
	newYork := time.FixedZone("EST", -5*3600)

	tests := []struct {
		name     string
		category observation.Category
		interval registry.Interval
		today    time.Time
		want     bool
	}{
		{"just after local midnight", observation.Running, registry.Daily, time.Date(2024, time.March, 5, 0, 45, 0, 0, rome), true},
		{"previous local day", observation.Running, registry.Daily, time.Date(2024, time.March, 4, 23, 50, 0, 0, rome), false},
		{"sunday evening west of utc", observation.Cycling, registry.Weekly, time.Date(2024, time.March, 10, 21, 0, 0, 0, newYork), true},
		{"monday of next week", observation.Cycling, registry.Weekly, time.Date(2024, time.March, 11, 0, 30, 0, 0, newYork), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HasRelevantObservation(table.ForCategory(tc.category), tc.interval, tc.today)
			if got != tc.want {
				t.Fatalf("relevant = %v, want %v", got, tc.want)
			}
		})
	}
}
