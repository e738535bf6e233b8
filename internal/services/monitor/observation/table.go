// Package observation normalizes raw records into immutable, time-ordered
// observation tables with derived calendar fields.
package observation

import (
	"sort"
	"time"
)

// Observation is one validated, dated measurement. Calendar fields are derived
// from the UTC timestamp at construction and never set independently.
type Observation struct {
	Timestamp time.Time
	Category  Category
	Value     float64
	// HasValue is false for attendance events and unscored entries.
	HasValue bool

	Day     int
	Week    int
	ISOYear int
	Month   time.Month
	Year    int
	Hour    int
	YearDay int
}

func newObservation(ts time.Time, category Category, value float64, hasValue bool) Observation {
	ts = ts.UTC()
	isoYear, week := ts.ISOWeek()
	return Observation{
		Timestamp: ts,
		Category:  category,
		Value:     value,
		HasValue:  hasValue,
		Day:       ts.Day(),
		Week:      week,
		ISOYear:   isoYear,
		Month:     ts.Month(),
		Year:      ts.Year(),
		Hour:      ts.Hour(),
		YearDay:   ts.YearDay(),
	}
}

// Date returns midnight UTC of the observation day.
func (o Observation) Date() time.Time {
	return DateOf(o.Timestamp)
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WallDate returns midnight UTC of the calendar day t shows on its own wall
// clock. Sources keep local wall time labeled UTC, so "today" must be read
// the same way before it is compared with observation dates.
func WallDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Anchor is the table's notion of "now": the newest observation.
type Anchor struct {
	Timestamp time.Time
	Date      time.Time
	Week      int
	ISOYear   int
	Month     time.Month
	Year      int
}

// InWeek reports whether o falls in the anchor's ISO week.
func (a Anchor) InWeek(o Observation) bool {
	return o.ISOYear == a.ISOYear && o.Week == a.Week
}

// Table is an immutable, timestamp-ordered set of observations.
type Table struct {
	rows []Observation
}

// Build validates every record and returns a table, or the first
// ValidationError. No partial table is ever returned.
func Build(records []RawRecord) (*Table, error) {
	rows := make([]Observation, 0, len(records))
	for i, rec := range records {
		o, err := normalize(i, rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, o)
	}
	sortRows(rows)
	return &Table{rows: rows}, nil
}

func sortRows(rows []Observation) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.HasValue != b.HasValue {
			return a.HasValue
		}
		return a.Value < b.Value
	})
}

// Len returns the number of rows; a nil table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns a copy of the rows in timestamp order.
func (t *Table) Rows() []Observation {
	if t == nil {
		return nil
	}
	out := make([]Observation, len(t.rows))
	copy(out, t.rows)
	return out
}

// Filter returns a new table holding the rows that satisfy keep.
func (t *Table) Filter(keep func(Observation) bool) *Table {
	out := &Table{}
	if t == nil {
		return out
	}
	for _, o := range t.rows {
		if keep(o) {
			out.rows = append(out.rows, o)
		}
	}
	return out
}

// ForCategory is shorthand for filtering on one category.
func (t *Table) ForCategory(c Category) *Table {
	return t.Filter(func(o Observation) bool { return o.Category == c })
}

// Anchor returns the anchor of the newest row; ok is false for an empty table.
func (t *Table) Anchor() (Anchor, bool) {
	if t.Len() == 0 {
		return Anchor{}, false
	}
	last := t.rows[len(t.rows)-1]
	return Anchor{
		Timestamp: last.Timestamp,
		Date:      last.Date(),
		Week:      last.Week,
		ISOYear:   last.ISOYear,
		Month:     last.Month,
		Year:      last.Year,
	}, true
}

// Values returns the non-missing values in timestamp order.
func (t *Table) Values() []float64 {
	if t == nil {
		return nil
	}
	out := make([]float64, 0, len(t.rows))
	for _, o := range t.rows {
		if o.HasValue {
			out = append(out, o.Value)
		}
	}
	return out
}

// HasDate reports whether any row falls on the UTC day of d.
func (t *Table) HasDate(d time.Time) bool {
	if t == nil {
		return false
	}
	day := DateOf(d)
	for _, o := range t.rows {
		if o.Date().Equal(day) {
			return true
		}
	}
	return false
}

// Dates returns the distinct observation days, oldest first.
func (t *Table) Dates() []time.Time {
	if t == nil {
		return nil
	}
	var out []time.Time
	for _, o := range t.rows {
		d := o.Date()
		if len(out) == 0 || !out[len(out)-1].Equal(d) {
			out = append(out, d)
		}
	}
	return out
}
