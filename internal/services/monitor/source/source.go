// Package source reads raw observation records from exported files.
//
// Readers only reshape input into observation.RawRecord values; validation
// happens when the records are built into a table or stored.
package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lifesignal/monitor/internal/services/monitor/observation"
)

// Format names an import file layout.
type Format string

const (
	FormatJSONLines Format = "jsonl"
	FormatCalendar  Format = "calendar"
	FormatDailyLog  Format = "dailylog"
)

// ParseFormat maps a flag value to a Format.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatJSONLines, "":
		return FormatJSONLines, nil
	case FormatCalendar:
		return FormatCalendar, nil
	case FormatDailyLog:
		return FormatDailyLog, nil
	}
	return "", fmt.Errorf("unknown import format %q", raw)
}

// Options tunes format-specific readers.
type Options struct {
	DailyLog DailyLogOptions
}

// Read dispatches to the reader of format.
func Read(r io.Reader, format Format, opts Options) ([]observation.RawRecord, error) {
	switch format {
	case FormatJSONLines:
		return ReadJSONLines(r)
	case FormatCalendar:
		return ReadCalendar(r)
	case FormatDailyLog:
		return ReadDailyLog(r, opts.DailyLog)
	}
	return nil, fmt.Errorf("unknown import format %q", format)
}

const maxLineBytes = 1 << 20

// ReadJSONLines decodes one {timestamp, value, category} object per line.
// Blank lines are skipped.
func ReadJSONLines(r io.Reader) ([]observation.RawRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []observation.RawRecord
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec observation.RawRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read json lines: %w", err)
	}
	return out, nil
}
