// Package reference computes the statistical baselines rules compare against:
// weekly-total quantiles over trailing or year-to-date windows, population
// mean and sigma, and historical quantile bands.
package reference

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/lifesignal/monitor/internal/platform/errors"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"gonum.org/v1/gonum/stat"
)

// ErrUndefinedReference matches every UndefinedReferenceError.
var ErrUndefinedReference = apperrors.New(apperrors.CodeUndefinedReference, "reference window has no data")

// UndefinedReferenceError is returned when a window has no eligible points.
type UndefinedReferenceError struct {
	Window string
}

func (e *UndefinedReferenceError) Error() string {
	return "undefined reference: empty " + e.Window + " window"
}

func (e *UndefinedReferenceError) Unwrap() error {
	return ErrUndefinedReference
}

// Measure selects how rows aggregate into a weekly total.
type Measure string

const (
	// MeasureSum adds the values of the week's rows.
	MeasureSum Measure = "sum"
	// MeasureCount counts the week's rows, with or without a value.
	MeasureCount Measure = "count"
)

// Valid reports whether m is a known measure.
func (m Measure) Valid() bool {
	return m == MeasureSum || m == MeasureCount
}

// Quantile returns the q-quantile of values with linear interpolation between
// closest ranks (h = (n-1)q).
func Quantile(values []float64, q float64) (float64, error) {
	if err := checkLevel(q); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, &UndefinedReferenceError{Window: "quantile"}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1], nil
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i]), nil
}

func checkLevel(q float64) error {
	if math.IsNaN(q) || q < 0 || q > 1 {
		return fmt.Errorf("quantile level %v outside [0, 1]", q)
	}
	return nil
}

// MeanSigma returns the population mean and the uncorrected (divide by n)
// standard deviation of every non-missing value in t.
func MeanSigma(t *observation.Table) (mean, sigma float64, err error) {
	values := t.Values()
	if len(values) == 0 {
		return 0, 0, &UndefinedReferenceError{Window: "history"}
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	return mean, math.Sqrt(variance), nil
}

// Band is a pair of lower and upper thresholds.
type Band struct {
	Lower float64
	Upper float64
}

// HistoricalQuantiles returns the (q, 1-q) quantile band over every
// non-missing value in t.
func HistoricalQuantiles(t *observation.Table, q float64) (Band, error) {
	values := t.Values()
	lower, err := Quantile(values, q)
	if err != nil {
		return Band{}, err
	}
	upper, err := Quantile(values, 1-q)
	if err != nil {
		return Band{}, err
	}
	return Band{Lower: lower, Upper: upper}, nil
}
