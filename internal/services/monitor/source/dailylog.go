package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
)

// DailyLogOptions positions ordinal days on the calendar.
type DailyLogOptions struct {
	// Year whose first ISO week Monday is day 0; zero means the current year.
	Year int
	// Cutoff drops days after it; zero keeps every day.
	Cutoff time.Time
	now    func() time.Time
}

// FirstDay returns the Monday of ISO week 1 of year.
func FirstDay(year int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	return jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
}

// ReadDailyLog decodes {"<ordinal day>": {"week": n, "Sleep": "3", ...}} and
// emits one record per filled dimension. Empty fields are not logged yet and
// produce no record; "x" stays the unscored sentinel.
func ReadDailyLog(r io.Reader, opts DailyLogOptions) ([]observation.RawRecord, error) {
	var days map[string]map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&days); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode daily log: %w", err)
	}

	year := opts.Year
	if year == 0 {
		now := time.Now
		if opts.now != nil {
			now = opts.now
		}
		year = now().UTC().Year()
	}
	first := FirstDay(year)

	ordinals := make([]int, 0, len(days))
	byOrdinal := make(map[int]map[string]json.RawMessage, len(days))
	for key, fields := range days {
		ordinal, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || ordinal < 0 {
			return nil, fmt.Errorf("daily log: invalid day %q", key)
		}
		ordinals = append(ordinals, ordinal)
		byOrdinal[ordinal] = fields
	}
	sort.Ints(ordinals)

	var out []observation.RawRecord
	for _, ordinal := range ordinals {
		date := first.AddDate(0, 0, ordinal)
		if !opts.Cutoff.IsZero() && date.After(observation.DateOf(opts.Cutoff)) {
			continue
		}
		fields := byOrdinal[ordinal]
		for _, dim := range observation.Dimensions() {
			raw, ok := lookupField(fields, string(dim))
			if !ok {
				continue
			}
			value, err := fieldValue(raw)
			if err != nil {
				return nil, fmt.Errorf("daily log day %d %s: %w", ordinal, dim, err)
			}
			if value == "" {
				continue
			}
			out = append(out, observation.RawRecord{
				Timestamp: date.Format("2006-01-02"),
				Value:     value,
				Category:  string(dim),
			})
		}
	}
	return out, nil
}

// lookupField matches dimension names case-insensitively ("Sleep", "sleep").
func lookupField(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if raw, ok := fields[name]; ok {
		return raw, true
	}
	for key, raw := range fields {
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return raw, true
		}
	}
	return nil, false
}

func fieldValue(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString), nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String(), nil
	}
	return "", fmt.Errorf("unsupported value %s", raw)
}
