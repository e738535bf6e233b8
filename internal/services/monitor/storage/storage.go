// Package storage declares the persistence contracts of the monitor.
package storage

import (
	"context"
	"time"

	apperrors "github.com/lifesignal/monitor/internal/platform/errors"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
)

var (
	// ErrNotFound indicates a requested delivery record is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrConflict indicates a write conflicts with a uniqueness constraint.
	ErrConflict = apperrors.New(apperrors.CodeConflict, "record conflict")
)

// RecordQuery selects stored raw records.
type RecordQuery struct {
	Categories []observation.Category
	// Since excludes records before this instant; zero keeps everything.
	Since time.Time
}

// RecordStore persists raw observation records.
type RecordStore interface {
	// PutRecords validates records as a whole and stores the new ones,
	// returning how many were inserted. Exact duplicates are ignored.
	PutRecords(ctx context.Context, records []observation.RawRecord) (int, error)
	ListRecords(ctx context.Context, query RecordQuery) ([]observation.RawRecord, error)
}

// DeliveryRecord stores one message or chart handed to a sink.
type DeliveryRecord struct {
	ID         string
	DedupeKey  string
	Category   string
	Interval   string
	AnchorDate time.Time
	MessageKey string
	Sink       string
	Body       string
	CreatedAt  time.Time
}

// DeliveryStore is the delivery log used to avoid sending a message twice.
type DeliveryStore interface {
	PutDelivery(ctx context.Context, record DeliveryRecord) error
	GetDelivery(ctx context.Context, dedupeKey string) (DeliveryRecord, error)
	HasDelivery(ctx context.Context, dedupeKey string) (bool, error)
	ListDeliveries(ctx context.Context, since time.Time, limit int) ([]DeliveryRecord, error)
}

// Store is the full monitor persistence surface.
type Store interface {
	RecordStore
	DeliveryStore
	Close() error
}
