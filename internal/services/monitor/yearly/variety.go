// Package yearly summarizes activity history per calendar year.
package yearly

import (
	"sort"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/render"
	"github.com/lifesignal/monitor/internal/services/monitor/rules"
	"gonum.org/v1/gonum/stat"
)

// YearVariety is the activity mix of one year.
type YearVariety struct {
	Year   int
	Total  int
	Counts map[observation.Category]int
	// Probabilities covers every activity observed in any year, so years are
	// comparable; unpracticed activities have probability zero.
	Probabilities map[observation.Category]float64
	// Entropy of Probabilities in nats.
	Entropy float64
}

// Variety counts activity sessions per year and category, oldest year first.
// Wellbeing rows are ignored. A gym row that shares its timestamp with a gym
// part row (gym: ub, gym: lb, gym: c) is the same session and counts once,
// under the part.
func Variety(t *observation.Table) []YearVariety {
	parts := map[int64]struct{}{}
	for _, o := range t.Rows() {
		if isGymPart(o.Category) {
			parts[o.Timestamp.UnixNano()] = struct{}{}
		}
	}
	activities := t.Filter(func(o observation.Observation) bool {
		if o.Category.Stream() != observation.StreamActivity {
			return false
		}
		if o.Category == observation.Gym {
			_, split := parts[o.Timestamp.UnixNano()]
			return !split
		}
		return true
	})

	counts := map[int]map[observation.Category]int{}
	observed := map[observation.Category]struct{}{}
	for _, o := range activities.Rows() {
		if counts[o.Year] == nil {
			counts[o.Year] = map[observation.Category]int{}
		}
		counts[o.Year][o.Category]++
		observed[o.Category] = struct{}{}
	}

	categories := make([]observation.Category, 0, len(observed))
	for c := range observed {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	years := make([]int, 0, len(counts))
	for year := range counts {
		years = append(years, year)
	}
	sort.Ints(years)

	out := make([]YearVariety, 0, len(years))
	for _, year := range years {
		v := YearVariety{
			Year:          year,
			Counts:        counts[year],
			Probabilities: make(map[observation.Category]float64, len(categories)),
		}
		for _, n := range v.Counts {
			v.Total += n
		}
		p := make([]float64, len(categories))
		for i, c := range categories {
			p[i] = float64(v.Counts[c]) / float64(v.Total)
			v.Probabilities[c] = p[i]
		}
		v.Entropy = stat.Entropy(p)
		out = append(out, v)
	}
	return out
}

func isGymPart(c observation.Category) bool {
	switch c {
	case observation.GymUpperBody, observation.GymLowerBody, observation.GymCore:
		return true
	}
	return false
}

// Report renders a header line and one line per year.
func Report(r *render.Renderer, years []YearVariety) []string {
	lines := []string{r.Render(rules.Message{Key: "monitor.report.variety.header"})}
	for _, y := range years {
		lines = append(lines, r.Render(rules.Message{
			Key:  "monitor.report.variety.row",
			Args: []any{rules.Year(y.Year), y.Total, y.Entropy},
		}))
	}
	return lines
}
