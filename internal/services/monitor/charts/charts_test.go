package charts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"golang.org/x/text/message"
)

func buildTable(t *testing.T, records []observation.RawRecord) *observation.Table {
	t.Helper()
	table, err := observation.Build(records)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return table
}

func TestCumulativeDistanceAccumulatesPerDay(t *testing.T) {
	table := buildTable(t, []observation.RawRecord{
		{Timestamp: "2023-12-31T08:00:00Z", Value: "50", Category: "running"},
		{Timestamp: "2024-01-02T08:00:00Z", Value: "5", Category: "running"},
		{Timestamp: "2024-01-02T18:00:00Z", Value: "3", Category: "running"},
		{Timestamp: "2024-01-10T08:00:00Z", Value: "10", Category: "running"},
	})

	got := CumulativeDistance(table, 2024)
	want := [][2]float64{{2, 8}, {10, 18}}
	if len(got) != len(want) {
		t.Fatalf("points = %v, want %v", got, want)
	}
	for i, w := range want {
		if got[i].X != w[0] || got[i].Y != w[1] {
			t.Fatalf("point %d = %v, want %v", i, got[i], w)
		}
	}
	if got := CumulativeDistance(table, 2022); len(got) != 0 {
		t.Fatalf("points for empty year = %v, want none", got)
	}
}

func TestWeekPointsUsesAnchorWeek(t *testing.T) {
	table := buildTable(t, []observation.RawRecord{
		{Timestamp: "2024-05-03", Value: "1", Category: "sleep"},
		{Timestamp: "2024-05-06", Value: "3", Category: "sleep"},
		{Timestamp: "2024-05-07", Value: "x", Category: "sleep"},
		{Timestamp: "2024-05-08", Value: "4", Category: "sleep"},
	})
	anchor, ok := table.Anchor()
	if !ok {
		t.Fatal("expected anchor")
	}
	got := WeekPoints(table, anchor)
	if len(got) != 2 {
		t.Fatalf("points = %v, want 2", got)
	}
	if got[0].X != 1 || got[0].Y != 3 || got[1].X != 3 || got[1].Y != 4 {
		t.Fatalf("points = %v", got)
	}
}

func TestDrawWritesCumulativeChart(t *testing.T) {
	table := buildTable(t, []observation.RawRecord{
		{Timestamp: "2023-03-01T08:00:00Z", Value: "12", Category: "running"},
		{Timestamp: "2023-04-01T08:00:00Z", Value: "8", Category: "running"},
		{Timestamp: "2024-02-01T08:00:00Z", Value: "10", Category: "running"},
		{Timestamp: "2024-03-05T08:00:00Z", Value: "7", Category: "running"},
		{Timestamp: "2024-03-06T08:00:00Z", Value: "3", Category: "swimming"},
	})
	dir := filepath.Join(t.TempDir(), "charts")

	path, err := NewDrawer(nil).Draw(table, observation.Running, Spec{Kind: KindCumulativeDistance, Baselines: []float64{1400}}, dir)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if want := filepath.Join(dir, "cumulative_running.png"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected non-empty image")
	}
}

func TestDrawWritesWeeklyChart(t *testing.T) {
	table := buildTable(t, []observation.RawRecord{
		{Timestamp: "2024-04-30", Value: "2", Category: "happiness"},
		{Timestamp: "2024-05-06", Value: "3", Category: "happiness"},
		{Timestamp: "2024-05-07", Value: "5", Category: "happiness"},
	})
	dir := t.TempDir()
	loc := message.NewPrinter(message.MatchLanguage("en-US"))

	path, err := NewDrawer(loc).Draw(table, observation.Happiness, Spec{Kind: KindWeeklyScores}, dir)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if want := filepath.Join(dir, "week_happiness.png"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestDrawSkipsEmptyCategory(t *testing.T) {
	table := buildTable(t, []observation.RawRecord{
		{Timestamp: "2024-05-06", Value: "3", Category: "sleep"},
	})
	dir := t.TempDir()

	path, err := NewDrawer(nil).Draw(table, observation.Running, Spec{Kind: KindCumulativeDistance}, dir)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if path != "" {
		t.Fatalf("path = %q, want empty", path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
}

func TestDrawRejectsInvalidSpec(t *testing.T) {
	table := buildTable(t, nil)
	tests := []Spec{
		{Kind: "pie"},
		{Kind: KindCumulativeDistance, YearsBack: -1},
	}
	for _, spec := range tests {
		if _, err := NewDrawer(nil).Draw(table, observation.Running, spec, t.TempDir()); err == nil {
			t.Fatalf("expected error for %+v", spec)
		}
	}
}
