package app

import (
	"sort"
	"strings"

	apperrors "github.com/lifesignal/monitor/internal/platform/errors"
	"github.com/lifesignal/monitor/internal/services/monitor/observation"
	"github.com/lifesignal/monitor/internal/services/monitor/registry"
)

// RequestKind names one dispatch: a category set evaluated at an interval.
type RequestKind string

const (
	KindDailyActivity  RequestKind = "daily_activity"
	KindWeeklyActivity RequestKind = "weekly_activity"
	KindDailyLog       RequestKind = "daily_log"
	KindWeeklyLog      RequestKind = "weekly_log"
)

// kindAliases keeps the trigger names used by existing schedulers working.
var kindAliases = map[string]RequestKind{
	"calendar":        KindDailyActivity,
	"calendar_weekly": KindWeeklyActivity,
	"org_daily":       KindDailyLog,
	"org":             KindWeeklyLog,
}

// ErrUnknownKind matches every UnknownKindError.
var ErrUnknownKind = apperrors.New(apperrors.CodeUnknownRequestKind, "unknown request kind")

// UnknownKindError reports a request kind with no dispatch plan.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return "unexpected kind of request: " + e.Kind
}

func (e *UnknownKindError) Unwrap() error {
	return apperrors.WithMetadata(apperrors.CodeUnknownRequestKind, e.Error(), map[string]string{
		"Kind": e.Kind,
	})
}

// ParseKind resolves a kind or one of its aliases.
func ParseKind(raw string) (RequestKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch kind := RequestKind(normalized); kind {
	case KindDailyActivity, KindWeeklyActivity, KindDailyLog, KindWeeklyLog:
		return kind, nil
	}
	if kind, ok := kindAliases[normalized]; ok {
		return kind, nil
	}
	return "", &UnknownKindError{Kind: raw}
}

// Kinds lists the canonical kinds, sorted.
func Kinds() []RequestKind {
	kinds := []RequestKind{KindDailyActivity, KindWeeklyActivity, KindDailyLog, KindWeeklyLog}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Plan returns the categories and interval evaluated for k. Kinds that did
// not come through ParseKind fail with *UnknownKindError.
func (k RequestKind) Plan() ([]observation.Category, registry.Interval, error) {
	switch k {
	case KindDailyActivity:
		return observation.Activities(), registry.Daily, nil
	case KindWeeklyActivity:
		return observation.Activities(), registry.Weekly, nil
	case KindDailyLog:
		return observation.Dimensions(), registry.Daily, nil
	case KindWeeklyLog:
		return observation.Dimensions(), registry.Weekly, nil
	}
	return nil, "", &UnknownKindError{Kind: string(k)}
}
