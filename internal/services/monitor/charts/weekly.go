package charts

import (
	"fmt"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// WeekPoints returns the scores of the anchor's ISO week as (weekday, score)
// points, Monday being 1.
func WeekPoints(t *observation.Table, anchor observation.Anchor) plotter.XYs {
	var out plotter.XYs
	for _, o := range t.Rows() {
		if !o.HasValue || !anchor.InWeek(o) {
			continue
		}
		out = append(out, plotter.XY{X: float64(isoWeekday(o)), Y: o.Value})
	}
	return out
}

func isoWeekday(o observation.Observation) int {
	return (int(o.Timestamp.Weekday())+6)%7 + 1
}

// lastWeekAnchor points at the ISO week before a.
func lastWeekAnchor(a observation.Anchor) observation.Anchor {
	prev := a.Date.AddDate(0, 0, -7)
	isoYear, week := prev.ISOWeek()
	return observation.Anchor{Date: prev, ISOYear: isoYear, Week: week}
}

func mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

func (d *Drawer) weekly(t *observation.Table, c observation.Category, path string) (string, error) {
	anchor, ok := t.Anchor()
	if !ok {
		return "", nil
	}
	points := WeekPoints(t, anchor)
	if len(points) == 0 {
		return "", nil
	}

	p := plot.New()
	p.Title.Text = d.label("monitor.chart.weekly.title", "%s, week %d", d.categoryLabel(c), anchor.Week)
	p.X.Label.Text = d.label("monitor.chart.weekly.axis_x", "day of week")
	p.X.Min, p.X.Max = 1, 7
	p.Y.Min, p.Y.Max = 0, 5

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return "", fmt.Errorf("week scatter: %w", err)
	}
	p.Add(scatter)

	averages := []struct {
		key, fallback string
		values        []float64
	}{
		{"monitor.chart.weekly.avg_history", "avg to date", t.Values()},
		{"monitor.chart.weekly.avg_last_week", "avg last week", t.Filter(lastWeekAnchor(anchor).InWeek).Values()},
		{"monitor.chart.weekly.avg_this_week", "avg this week", t.Filter(anchor.InWeek).Values()},
	}
	for i, avg := range averages {
		level, ok := mean(avg.values)
		if !ok {
			continue
		}
		fn := plotter.NewFunction(func(float64) float64 { return level })
		fn.XMin, fn.XMax = 1, 7
		fn.Color = plotutil.Color(i + 1)
		fn.Width = vg.Points(1.5)
		p.Add(fn)
		p.Legend.Add(d.label(avg.key, avg.fallback), fn)
	}

	if err := p.Save(d.width, d.height, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}
