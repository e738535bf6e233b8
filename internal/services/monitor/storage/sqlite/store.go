// Package sqlite implements the monitor stores on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sqlitemigrate "github.com/lifesignal/monitor/internal/platform/storage/sqlitemigrate"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/storage"
	"github.com/lifesignal/monitor/internal/services/monitor/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// unscoredValue is how a scored-but-missing value is persisted.
const unscoredValue = "x"

// Store provides SQLite-backed persistence for raw records and deliveries.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a monitor SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, now: time.Now}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutRecords validates the whole batch before writing any of it.
func (s *Store) PutRecords(ctx context.Context, records []observation.RawRecord) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	table, err := observation.Build(records)
	if err != nil {
		return 0, err
	}
	if table.Len() == 0 {
		return 0, nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin record import: %w", err)
	}
	rollbackWith := func(cause error) (int, error) {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return 0, fmt.Errorf("%w: rollback record import: %v", cause, rollbackErr)
		}
		return 0, cause
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO raw_records (category, occurred_at, value, imported_at)
VALUES (?, ?, ?, ?)
`)
	if err != nil {
		return rollbackWith(fmt.Errorf("prepare record insert: %w", err))
	}
	defer stmt.Close()

	importedAt := toMillis(s.now())
	inserted := 0
	for _, o := range table.Rows() {
		res, err := stmt.ExecContext(ctx, string(o.Category), toMillis(o.Timestamp), storedValue(o), importedAt)
		if err != nil {
			return rollbackWith(fmt.Errorf("insert record: %w", err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return rollbackWith(fmt.Errorf("insert record: %w", err))
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit record import: %w", err)
	}
	return inserted, nil
}

func storedValue(o observation.Observation) string {
	if o.HasValue {
		return strconv.FormatFloat(o.Value, 'f', -1, 64)
	}
	if spec, ok := o.Category.Spec(); ok && spec.AllowsUnscored {
		return unscoredValue
	}
	return ""
}

// ListRecords returns stored records ordered by time then category.
func (s *Store) ListRecords(ctx context.Context, query storage.RecordQuery) ([]observation.RawRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var (
		clauses []string
		args    []any
	)
	if !query.Since.IsZero() {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, toMillis(query.Since))
	}
	if len(query.Categories) > 0 {
		placeholders := make([]string, len(query.Categories))
		for i, c := range query.Categories {
			placeholders[i] = "?"
			args = append(args, string(c))
		}
		clauses = append(clauses, "category IN ("+strings.Join(placeholders, ", ")+")")
	}
	stmt := "SELECT category, occurred_at, value FROM raw_records"
	if len(clauses) > 0 {
		stmt += " WHERE " + strings.Join(clauses, " AND ")
	}
	stmt += " ORDER BY occurred_at, category, value"

	rows, err := s.sqlDB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []observation.RawRecord
	for rows.Next() {
		var (
			category   string
			occurredAt int64
			value      string
		)
		if err := rows.Scan(&category, &occurredAt, &value); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, observation.RawRecord{
			Timestamp: fromMillis(occurredAt).Format(time.RFC3339Nano),
			Value:     value,
			Category:  category,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// PutDelivery records one delivery; a second record with the same dedupe key
// fails with storage.ErrConflict.
func (s *Store) PutDelivery(ctx context.Context, record storage.DeliveryRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.DedupeKey = strings.TrimSpace(record.DedupeKey)
	if record.ID == "" {
		return fmt.Errorf("delivery id is required")
	}
	if record.DedupeKey == "" {
		return fmt.Errorf("delivery dedupe key is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO deliveries (id, dedupe_key, category, interval, anchor_date, message_key, sink, body, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.DedupeKey,
		record.Category,
		record.Interval,
		toMillis(record.AnchorDate),
		record.MessageKey,
		record.Sink,
		record.Body,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("put delivery %s: %w", record.DedupeKey, storage.ErrConflict)
		}
		return fmt.Errorf("put delivery: %w", err)
	}
	return nil
}

// GetDelivery loads one delivery by dedupe key.
func (s *Store) GetDelivery(ctx context.Context, dedupeKey string) (storage.DeliveryRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.DeliveryRecord{}, err
	}
	dedupeKey = strings.TrimSpace(dedupeKey)
	if dedupeKey == "" {
		return storage.DeliveryRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, dedupe_key, category, interval, anchor_date, message_key, sink, body, created_at
FROM deliveries
WHERE dedupe_key = ?
`, dedupeKey)
	record, err := scanDelivery(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DeliveryRecord{}, storage.ErrNotFound
		}
		return storage.DeliveryRecord{}, fmt.Errorf("get delivery: %w", err)
	}
	return record, nil
}

// HasDelivery reports whether dedupeKey was already delivered.
func (s *Store) HasDelivery(ctx context.Context, dedupeKey string) (bool, error) {
	_, err := s.GetDelivery(ctx, dedupeKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListDeliveries lists deliveries created at or after since, newest first.
func (s *Store) ListDeliveries(ctx context.Context, since time.Time, limit int) ([]storage.DeliveryRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, dedupe_key, category, interval, anchor_date, message_key, sink, body, created_at
FROM deliveries
WHERE created_at >= ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, toMillis(since), limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []storage.DeliveryRecord
	for rows.Next() {
		record, err := scanDelivery(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

func scanDelivery(scan func(dest ...any) error) (storage.DeliveryRecord, error) {
	var (
		record     storage.DeliveryRecord
		anchorDate int64
		createdAt  int64
	)
	if err := scan(
		&record.ID,
		&record.DedupeKey,
		&record.Category,
		&record.Interval,
		&anchorDate,
		&record.MessageKey,
		&record.Sink,
		&record.Body,
		&createdAt,
	); err != nil {
		return storage.DeliveryRecord{}, err
	}
	record.AnchorDate = fromMillis(anchorDate)
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
