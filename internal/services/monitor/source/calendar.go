package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
)

// CalendarEvent is the subset of a calendar export event the monitor reads.
type CalendarEvent struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"start"`
}

// localWallClockLen is the length of "2006-01-02T15:04"; the zone offset of
// an event is dropped so it keeps the day it was logged on.
const localWallClockLen = len("2006-01-02T15:04")

// ReadCalendar decodes a calendar export, either a bare event array or an
// object with an "items" array, and turns matching events into records.
func ReadCalendar(r io.Reader) ([]observation.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read calendar export: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var events []CalendarEvent
	if data[0] == '[' {
		err = json.Unmarshal(data, &events)
	} else {
		var list struct {
			Items []CalendarEvent `json:"items"`
		}
		err = json.Unmarshal(data, &list)
		events = list.Items
	}
	if err != nil {
		return nil, fmt.Errorf("decode calendar export: %w", err)
	}
	return CalendarRecords(events), nil
}

// CalendarRecords emits one record per (event, matching activity). An event
// may match several activities, e.g. "Gym: ub" matches gym and gym: ub.
func CalendarRecords(events []CalendarEvent) []observation.RawRecord {
	var out []observation.RawRecord
	for _, event := range events {
		timestamp := eventTimestamp(event)
		if timestamp == "" {
			continue
		}
		for _, c := range observation.Activities() {
			if !MatchesSummary(event, c) {
				continue
			}
			rec := observation.RawRecord{Timestamp: timestamp, Category: string(c)}
			if spec, ok := c.Spec(); ok && spec.Measured {
				rec.Value = EventDistance(event.Description)
			}
			out = append(out, rec)
		}
	}
	return out
}

// MatchesSummary reports whether event belongs to activity c. Gym events
// match by prefix; the others need an exact summary and a description, so
// social events such as "Running w/ Bob" are left out.
func MatchesSummary(event CalendarEvent, c observation.Category) bool {
	summary := strings.ToLower(strings.TrimSpace(event.Summary))
	if summary == "" {
		return false
	}
	if c == observation.Gym {
		return strings.HasPrefix(summary, string(observation.Gym))
	}
	return summary == string(c) && strings.TrimSpace(event.Description) != ""
}

// EventDistance returns the text before the first "km" of description.
func EventDistance(description string) string {
	before, _, _ := strings.Cut(description, "km")
	return strings.TrimSpace(before)
}

func eventTimestamp(event CalendarEvent) string {
	raw := strings.TrimSpace(event.Start.DateTime)
	if raw == "" {
		return strings.TrimSpace(event.Start.Date)
	}
	if len(raw) > localWallClockLen {
		raw = raw[:localWallClockLen]
	}
	return raw
}
