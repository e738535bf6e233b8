// Package engine drives one evaluation: it decides whether a category has
// anything to say for an interval, runs the registered rules in order and
// then the chart producers.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/lifesignal/monitor/internal/services/monitor/charts"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/registry"
	"github.com/lifesignal/monitor/internal/services/monitor/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/lifesignal/monitor/internal/services/monitor/engine"

// Skip reasons reported in Result.Reason.
const (
	ReasonEmptyTable   = "no observations"
	ReasonNotRelevant  = "no observation in the current interval"
	ReasonNoRegistered = "nothing registered"
)

// Outcome classifies a finished evaluation for observers.
type Outcome string

const (
	OutcomeEmitted Outcome = "emitted"
	OutcomeSilent  Outcome = "silent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Request asks for one (category, interval) evaluation.
type Request struct {
	Table    *observation.Table
	Category observation.Category
	Interval registry.Interval
	// Today is the evaluation day; zero means now.
	Today time.Time
	// ChartDir receives chart images; charts are skipped when empty.
	ChartDir string
}

// Result is the ordered outcome of one evaluation.
type Result struct {
	Category observation.Category
	Interval registry.Interval
	Anchor   observation.Anchor
	Skipped  bool
	Reason   string
	Messages []rules.Message
	Charts   []string
}

// Observer is notified after every evaluation.
type Observer interface {
	EvaluationFinished(key registry.Key, outcome Outcome, result Result, elapsed time.Duration)
}

// Engine evaluates requests against a registry.
type Engine struct {
	registry *registry.Registry
	drawer   *charts.Drawer
	observer Observer
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDrawer sets the chart drawer.
func WithDrawer(d *charts.Drawer) Option {
	return func(e *Engine) { e.drawer = d }
}

// WithObserver sets the evaluation observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock overrides the clock used when a request carries no Today.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine over reg; a nil reg uses registry.Default.
func New(reg *registry.Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = registry.Default()
	}
	e := &Engine{
		registry: reg,
		drawer:   charts.NewDrawer(nil),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasRelevantObservation reports whether t has a row on today's wall-clock
// day (daily) or in that day's ISO week (weekly).
func HasRelevantObservation(t *observation.Table, interval registry.Interval, today time.Time) bool {
	if t.Len() == 0 {
		return false
	}
	today = observation.WallDate(today)
	switch interval {
	case registry.Daily:
		return t.HasDate(today)
	case registry.Weekly:
		isoYear, week := today.ISOWeek()
		for _, o := range t.Rows() {
			if o.ISOYear == isoYear && o.Week == week {
				return true
			}
		}
	}
	return false
}

// Evaluate runs every rule and chart registered for the request's key.
func (e *Engine) Evaluate(ctx context.Context, req Request) (Result, error) {
	key := registry.Key{Category: req.Category, Interval: req.Interval}
	ctx, span := e.tracer.Start(ctx, "monitor.evaluate", trace.WithAttributes(
		attribute.String("monitor.category", string(req.Category)),
		attribute.String("monitor.interval", string(req.Interval)),
	))
	defer span.End()

	started := time.Now()
	result, err := e.evaluate(ctx, req)
	outcome := outcomeOf(result, err)
	span.SetAttributes(
		attribute.String("monitor.outcome", string(outcome)),
		attribute.Int("monitor.messages", len(result.Messages)),
		attribute.Int("monitor.charts", len(result.Charts)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if e.observer != nil {
		e.observer.EvaluationFinished(key, outcome, result, time.Since(started))
	}
	return result, err
}

func (e *Engine) evaluate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !req.Interval.Valid() {
		return Result{}, &registry.UnknownIntervalError{Interval: string(req.Interval)}
	}
	result := Result{Category: req.Category, Interval: req.Interval}

	today := req.Today
	if today.IsZero() {
		today = e.now()
	}
	table := req.Table.ForCategory(req.Category)
	if table.Len() == 0 {
		return skipped(result, ReasonEmptyTable), nil
	}
	if !HasRelevantObservation(table, req.Interval, today) {
		return skipped(result, ReasonNotRelevant), nil
	}
	result.Anchor, _ = table.Anchor()

	key := registry.Key{Category: req.Category, Interval: req.Interval}
	specs := e.registry.Rules(key)
	chartSpecs := e.registry.Charts(key)
	if len(specs) == 0 && len(chartSpecs) == 0 {
		return skipped(result, ReasonNoRegistered), nil
	}

	for _, spec := range specs {
		msg, ok, err := spec.Evaluate(table, req.Category)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate %s %s: %w", key, spec.Kind, err)
		}
		if ok {
			result.Messages = append(result.Messages, msg)
		}
	}

	if req.ChartDir == "" {
		return result, nil
	}
	for _, spec := range chartSpecs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		path, err := e.drawer.Draw(table, req.Category, spec, req.ChartDir)
		if err != nil {
			return Result{}, fmt.Errorf("draw %s %s: %w", key, spec.Kind, err)
		}
		if path != "" {
			result.Charts = append(result.Charts, path)
		}
	}
	return result, nil
}

// EvaluateAll evaluates reqs concurrently. Results keep the order of reqs; the
// first error cancels the remaining evaluations.
func (e *Engine) EvaluateAll(ctx context.Context, reqs []Request) ([]Result, error) {
	results := make([]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			result, err := e.Evaluate(gctx, req)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func skipped(result Result, reason string) Result {
	result.Skipped = true
	result.Reason = reason
	return result
}

func outcomeOf(result Result, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeError
	case result.Skipped:
		return OutcomeSkipped
	case len(result.Messages) > 0 || len(result.Charts) > 0:
		return OutcomeEmitted
	default:
		return OutcomeSilent
	}
}
