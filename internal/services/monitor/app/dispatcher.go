// Package app wires the monitor: it loads stored records, evaluates every
// category of a request kind, renders the results and hands them to sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/lifesignal/monitor/internal/platform/id"
	"github.com/lifesignal/monitor/internal/platform/timeouts"
	"github.com/lifesignal/monitor/internal/services/monitor/delivery"
	"github.com/lifesignal/monitor/internal/services/monitor/engine"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/render"
	"github.com/lifesignal/monitor/internal/services/monitor/storage"
	"github.com/lifesignal/monitor/internal/services/monitor/yearly"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultFirstYear is the oldest year loaded from the store.
	DefaultFirstYear = 2020

	tracerName = "github.com/lifesignal/monitor/internal/services/monitor/app"
)

// DeliveryObserver receives delivery outcomes; *metrics.Metrics satisfies it.
type DeliveryObserver interface {
	Delivered(sink string, err error)
	DeliverySkipped(sink string)
	RecordsImported(n int)
}

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	FirstYear int
	ChartDir  string
	// DryRun evaluates and renders without delivering or logging anything.
	DryRun bool
}

// Dispatcher runs request kinds end to end.
type Dispatcher struct {
	store    storage.Store
	engine   *engine.Engine
	renderer *render.Renderer
	sink     delivery.Sink
	observer DeliveryObserver
	cfg      DispatcherConfig
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() (string, error)
}

// NewDispatcher assembles a dispatcher. observer may be nil.
func NewDispatcher(store storage.Store, eng *engine.Engine, renderer *render.Renderer, sink delivery.Sink, observer DeliveryObserver, cfg DispatcherConfig) *Dispatcher {
	if cfg.FirstYear <= 0 {
		cfg.FirstYear = DefaultFirstYear
	}
	return &Dispatcher{
		store:    store,
		engine:   eng,
		renderer: renderer,
		sink:     sink,
		observer: observer,
		cfg:      cfg,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newID:    id.NewID,
	}
}

// Summary reports one dispatch.
type Summary struct {
	Kind       RequestKind
	Results    []engine.Result
	Deliveries []delivery.Delivery
	Delivered  int
	Duplicates int
	Failed     int
}

// Dispatch evaluates kind for today (zero means now). Delivery failures are
// logged and counted; they never fail the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, kind RequestKind, today time.Time) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Dispatch)
	defer cancel()
	ctx, span := d.tracer.Start(ctx, "monitor.dispatch", trace.WithAttributes(
		attribute.String("monitor.kind", string(kind)),
	))
	defer span.End()

	summary, err := d.dispatch(ctx, kind, today)
	span.SetAttributes(
		attribute.Int("monitor.delivered", summary.Delivered),
		attribute.Int("monitor.duplicates", summary.Duplicates),
		attribute.Int("monitor.failed", summary.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return summary, err
}

func (d *Dispatcher) dispatch(ctx context.Context, kind RequestKind, today time.Time) (Summary, error) {
	summary := Summary{Kind: kind}
	categories, interval, err := kind.Plan()
	if err != nil {
		return summary, err
	}
	if today.IsZero() {
		today = d.now()
	}
	today = observation.WallDate(today)

	table, err := d.loadTable(ctx, categories)
	if err != nil {
		return summary, err
	}

	reqs := make([]engine.Request, len(categories))
	for i, c := range categories {
		reqs[i] = engine.Request{
			Table:    table,
			Category: c,
			Interval: interval,
			Today:    today,
			ChartDir: d.chartDir(kind, today),
		}
	}
	results, err := d.engine.EvaluateAll(ctx, reqs)
	if err != nil {
		return summary, fmt.Errorf("evaluate %s: %w", kind, err)
	}
	summary.Results = results

	for _, result := range results {
		if result.Skipped {
			log.Printf("No event for %s %s during this past time interval: %s.", result.Interval, result.Category, result.Reason)
			continue
		}
		log.Printf("Generated %d messages and %d charts for %s %s.", len(result.Messages), len(result.Charts), result.Interval, result.Category)
		for _, item := range d.deliveries(result) {
			d.deliver(ctx, item, &summary)
		}
	}
	return summary, nil
}

func (d *Dispatcher) loadTable(ctx context.Context, categories []observation.Category) (*observation.Table, error) {
	records, err := d.store.ListRecords(ctx, storage.RecordQuery{
		Categories: categories,
		Since:      time.Date(d.cfg.FirstYear, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	table, err := observation.Build(records)
	if err != nil {
		return nil, fmt.Errorf("build table: %w", err)
	}
	return table, nil
}

func (d *Dispatcher) chartDir(kind RequestKind, today time.Time) string {
	if d.cfg.ChartDir == "" {
		return ""
	}
	return filepath.Join(d.cfg.ChartDir, today.Format("2006-01-02"), string(kind))
}

// deliveries lists the messages of result, then its charts.
func (d *Dispatcher) deliveries(result engine.Result) []delivery.Delivery {
	base := delivery.Delivery{
		Category:   string(result.Category),
		Interval:   string(result.Interval),
		AnchorDate: result.Anchor.Date,
	}
	out := make([]delivery.Delivery, 0, len(result.Messages)+len(result.Charts))
	for _, msg := range result.Messages {
		item := base
		item.Kind = delivery.KindMessage
		item.MessageKey = msg.Key
		item.Text = d.renderer.Render(msg)
		item.DedupeKey = dedupeKey(result, msg.Key)
		out = append(out, item)
	}
	for _, path := range result.Charts {
		item := base
		item.Kind = delivery.KindChart
		item.ChartPath = path
		item.MessageKey = "chart:" + filepath.Base(path)
		item.DedupeKey = dedupeKey(result, item.MessageKey)
		out = append(out, item)
	}
	return out
}

// dedupeKey is (category, interval, anchor date, message key).
func dedupeKey(result engine.Result, messageKey string) string {
	return fmt.Sprintf("%s|%s|%s|%s", result.Category, result.Interval, result.Anchor.Date.Format("2006-01-02"), messageKey)
}

func (d *Dispatcher) deliver(ctx context.Context, item delivery.Delivery, summary *Summary) {
	summary.Deliveries = append(summary.Deliveries, item)
	if d.cfg.DryRun {
		return
	}
	sinkName := d.sink.Name()

	seen, err := d.store.HasDelivery(ctx, item.DedupeKey)
	if err != nil {
		log.Printf("check delivery %s: %v", item.DedupeKey, err)
	}
	if seen {
		summary.Duplicates++
		if d.observer != nil {
			d.observer.DeliverySkipped(sinkName)
		}
		return
	}

	err = d.sink.Deliver(ctx, item)
	if d.observer != nil {
		d.observer.Delivered(sinkName, err)
	}
	if err != nil {
		summary.Failed++
		log.Printf("deliver %s to %s: %v", item.DedupeKey, sinkName, err)
		return
	}
	summary.Delivered++

	recordID, err := d.newID()
	if err != nil {
		log.Printf("record delivery %s: %v", item.DedupeKey, err)
		return
	}
	body := item.Text
	if item.Kind == delivery.KindChart {
		body = item.ChartPath
	}
	err = d.store.PutDelivery(ctx, storage.DeliveryRecord{
		ID:         recordID,
		DedupeKey:  item.DedupeKey,
		Category:   item.Category,
		Interval:   item.Interval,
		AnchorDate: item.AnchorDate,
		MessageKey: item.MessageKey,
		Sink:       sinkName,
		Body:       body,
		CreatedAt:  d.now(),
	})
	if err != nil && !errors.Is(err, storage.ErrConflict) {
		log.Printf("record delivery %s: %v", item.DedupeKey, err)
	}
}

// Import validates and stores records, returning how many were new.
func (d *Dispatcher) Import(ctx context.Context, records []observation.RawRecord) (int, error) {
	inserted, err := d.store.PutRecords(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("import records: %w", err)
	}
	if d.observer != nil {
		d.observer.RecordsImported(inserted)
	}
	return inserted, nil
}

// VarietyReport renders the per-year activity variety of the stored history.
func (d *Dispatcher) VarietyReport(ctx context.Context) ([]string, error) {
	table, err := d.loadTable(ctx, observation.Activities())
	if err != nil {
		return nil, err
	}
	return yearly.Report(d.renderer, yearly.Variety(table)), nil
}
