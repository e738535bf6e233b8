// Package delivery hands rendered messages and chart images to sinks.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Kind separates text messages from chart images.
type Kind string

const (
	KindMessage Kind = "message"
	KindChart   Kind = "chart"
)

// Delivery is one item handed to a sink.
type Delivery struct {
	Kind       Kind      `json:"kind"`
	DedupeKey  string    `json:"dedupe_key"`
	Category   string    `json:"category"`
	Interval   string    `json:"interval"`
	AnchorDate time.Time `json:"anchor_date"`
	MessageKey string    `json:"message_key,omitempty"`
	Text       string    `json:"text,omitempty"`
	ChartPath  string    `json:"chart_path,omitempty"`
}

// Sink delivers items to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
	Close() error
}

// WriterSink prints deliveries as text lines.
type WriterSink struct {
	name string
	mu   sync.Mutex
	w    io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(name string, w io.Writer) *WriterSink {
	return &WriterSink{name: name, w: w}
}

func (s *WriterSink) Name() string { return s.name }

// Deliver writes one line per delivery.
func (s *WriterSink) Deliver(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch d.Kind {
	case KindChart:
		_, err = fmt.Fprintf(s.w, "[%s/%s] chart: %s\n", d.Category, d.Interval, d.ChartPath)
	default:
		_, err = fmt.Fprintf(s.w, "[%s/%s] %s\n", d.Category, d.Interval, d.Text)
	}
	if err != nil {
		return fmt.Errorf("write delivery: %w", err)
	}
	return nil
}

func (s *WriterSink) Close() error { return nil }

// MultiSink fans a delivery out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks; nil entries are dropped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) Name() string { return "multi" }

// Sinks returns the combined sinks.
func (m *MultiSink) Sinks() []Sink {
	return append([]Sink(nil), m.sinks...)
}

// Deliver tries every sink and joins their errors.
func (m *MultiSink) Deliver(ctx context.Context, d Delivery) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Deliver(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
