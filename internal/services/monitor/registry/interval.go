package registry

import (
	"strings"

	apperrors "github.com/lifesignal/monitor/internal/platform/errors"
)

// Interval is the cadence a rule set runs at.
type Interval string

const (
	Daily  Interval = "daily"
	Weekly Interval = "weekly"
)

// ErrUnknownInterval matches every UnknownIntervalError.
var ErrUnknownInterval = apperrors.New(apperrors.CodeUnknownInterval, "unknown interval")

// UnknownIntervalError reports an interval tag outside {daily, weekly}.
type UnknownIntervalError struct {
	Interval string
}

func (e *UnknownIntervalError) Error() string {
	return "unknown interval " + `"` + e.Interval + `"`
}

func (e *UnknownIntervalError) Unwrap() error {
	return apperrors.WithMetadata(apperrors.CodeUnknownInterval, e.Error(), map[string]string{
		"Interval": e.Interval,
	})
}

// ParseInterval maps a tag to an Interval.
func ParseInterval(raw string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(raw))) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	}
	return "", &UnknownIntervalError{Interval: raw}
}

// Valid reports whether i is a known interval.
func (i Interval) Valid() bool {
	return i == Daily || i == Weekly
}
