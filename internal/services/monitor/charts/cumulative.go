package charts

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const daysPerYear = 365

// CumulativeDistance returns, for each day of year with activity in year, the
// distance accumulated since January 1st.
func CumulativeDistance(t *observation.Table, year int) plotter.XYs {
	daily := map[int]float64{}
	for _, o := range t.Rows() {
		if o.Year == year && o.HasValue {
			daily[o.YearDay] += o.Value
		}
	}
	days := make([]int, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Ints(days)

	out := make(plotter.XYs, len(days))
	var total float64
	for i, day := range days {
		total += daily[day]
		out[i] = plotter.XY{X: float64(day), Y: total}
	}
	return out
}

func (d *Drawer) cumulative(t *observation.Table, c observation.Category, spec Spec, path string) (string, error) {
	anchor, ok := t.Anchor()
	if !ok {
		return "", nil
	}
	current := CumulativeDistance(t, anchor.Year)
	if len(current) == 0 {
		return "", nil
	}
	yearsBack := spec.YearsBack
	if yearsBack == 0 {
		yearsBack = defaultYearsBack
	}

	label := d.categoryLabel(c)
	p := plot.New()
	p.Title.Text = d.label("monitor.chart.cumulative.title", "Cumulative %s distance", label)
	p.X.Label.Text = d.label("monitor.chart.cumulative.axis_x", "day of year")
	p.Y.Label.Text = d.label("monitor.chart.cumulative.axis_y", "cumulative distance in %s [km]", label)
	p.Legend.Top = true
	p.Legend.Left = true

	for i := 0; i <= yearsBack; i++ {
		year := anchor.Year - i
		points := current
		if i > 0 {
			points = CumulativeDistance(t, year)
		}
		if len(points) == 0 {
			continue
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return "", fmt.Errorf("cumulative line %d: %w", year, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(strconv.Itoa(year), line)
	}

	for i, baseline := range spec.Baselines {
		target := baseline
		fn := plotter.NewFunction(func(day float64) float64 { return day * target / daysPerYear })
		fn.XMin, fn.XMax = 0, daysPerYear
		fn.Color = plotutil.Color(yearsBack + 1 + i)
		fn.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(fn)
		p.Legend.Add(strconv.FormatFloat(baseline, 'f', -1, 64)+" km", fn)
	}

	last := current[len(current)-1]
	p.X.Min, p.X.Max = 1, last.X
	p.Y.Min, p.Y.Max = 0, last.Y

	if err := p.Save(d.width, d.height, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}
