package observation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawRecord is one observation as handed over by a source, before validation.
type RawRecord struct {
	Timestamp string `json:"timestamp"`
	// Value is empty when absent.
	Value    string `json:"value,omitempty"`
	Category string `json:"category"`
}

// UnmarshalJSON accepts the value as a JSON number, string or null.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var wire struct {
		Timestamp string          `json:"timestamp"`
		Value     json.RawMessage `json:"value"`
		Category  string          `json:"category"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Timestamp = wire.Timestamp
	r.Category = wire.Category
	r.Value = ""

	raw := bytes.TrimSpace(wire.Value)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &r.Value); err != nil {
			return err
		}
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("value: %w", err)
		}
		r.Value = n.String()
	}
	return nil
}

// unscored sentinels used by the daily log for "not scored" and "not applicable".
var unscoredSentinels = map[string]struct{}{
	"x":   {},
	"n/a": {},
}

// IsUnscored reports whether raw is the unscored sentinel.
func IsUnscored(raw string) bool {
	_, ok := unscoredSentinels[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the accepted timestamp layouts. Inputs without a zone
// are read as UTC; the result is always UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", raw)
}

func normalize(index int, rec RawRecord) (Observation, error) {
	category, ok := ParseCategory(rec.Category)
	if !ok {
		return Observation{}, &ValidationError{Index: index, Field: "category", Value: rec.Category, Reason: "unknown category"}
	}
	spec, _ := category.Spec()

	ts, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		return Observation{}, &ValidationError{Index: index, Field: "timestamp", Value: rec.Timestamp, Reason: "not a valid date-time"}
	}

	rawValue := strings.TrimSpace(rec.Value)
	invalid := func(reason string) error {
		return &ValidationError{Index: index, Field: "value", Value: rec.Value, Reason: reason}
	}
	switch {
	case rawValue == "":
		if spec.Measured {
			return Observation{}, invalid("value is required for " + string(category))
		}
		return newObservation(ts, category, 0, false), nil
	case !spec.Measured:
		return Observation{}, invalid(string(category) + " takes no value")
	case IsUnscored(rawValue):
		if !spec.AllowsUnscored {
			return Observation{}, invalid(string(category) + " cannot be unscored")
		}
		return newObservation(ts, category, 0, false), nil
	}

	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return Observation{}, invalid("not a number")
	}
	if value < spec.Min || value > spec.Max {
		return Observation{}, invalid(fmt.Sprintf("outside [%g, %g]", spec.Min, spec.Max))
	}
	return newObservation(ts, category, value, true), nil
}
