// Package charts draws the summary images attached to weekly reports.
package charts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"golang.org/x/text/message"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg"
)

// Kind identifies a chart producer.
type Kind string

const (
	// KindCumulativeDistance plots this year's cumulative distance against
	// previous years and straight-line yearly baselines.
	KindCumulativeDistance Kind = "cumulative_distance"
	// KindWeeklyScores plots the anchor week's scores with history averages.
	KindWeeklyScores Kind = "weekly_scores"
)

const defaultYearsBack = 2

// Spec configures one chart producer.
type Spec struct {
	Kind Kind `yaml:"kind" json:"kind"`
	// YearsBack is how many previous years to overlay; zero means two.
	YearsBack int `yaml:"years_back,omitempty" json:"years_back,omitempty"`
	// Baselines are yearly distance targets drawn as straight lines.
	Baselines []float64 `yaml:"baselines,omitempty" json:"baselines,omitempty"`
}

// Clone returns a deep copy of s.
func (s Spec) Clone() Spec {
	s.Baselines = append([]float64(nil), s.Baselines...)
	return s
}

// Validate checks the spec kind.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindCumulativeDistance, KindWeeklyScores:
	default:
		return fmt.Errorf("unknown chart kind %q", s.Kind)
	}
	if s.YearsBack < 0 {
		return fmt.Errorf("chart %s: years_back must not be negative", s.Kind)
	}
	return nil
}

// Localizer is the message-printer contract used for titles and labels.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Drawer writes chart images into a destination directory.
type Drawer struct {
	loc    Localizer
	width  vg.Length
	height vg.Length
}

// NewDrawer returns a drawer labelling charts through loc. A nil loc keeps
// the English fallbacks.
func NewDrawer(loc Localizer) *Drawer {
	return &Drawer{loc: loc, width: 16 * vg.Centimeter, height: 10 * vg.Centimeter}
}

// Draw renders spec for category c into dir and returns the written path.
// An empty path with a nil error means there was nothing to draw.
func (d *Drawer) Draw(t *observation.Table, c observation.Category, spec Spec, dir string) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("chart directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart directory: %w", err)
	}
	switch spec.Kind {
	case KindCumulativeDistance:
		return d.cumulative(t.ForCategory(c), c, spec, filepath.Join(dir, "cumulative_"+c.Slug()+".png"))
	default:
		return d.weekly(t.ForCategory(c), c, filepath.Join(dir, "week_"+c.Slug()+".png"))
	}
}

func (d *Drawer) label(key string, fallback string, args ...any) string {
	if d == nil || d.loc == nil {
		return fmt.Sprintf(fallback, args...)
	}
	value := strings.TrimSpace(d.loc.Sprintf(key, args...))
	if value == "" || value == key || value == fmt.Sprintf(key, args...) {
		return fmt.Sprintf(fallback, args...)
	}
	return value
}

func (d *Drawer) categoryLabel(c observation.Category) string {
	return d.label("category."+c.Slug(), "%s", string(c))
}
