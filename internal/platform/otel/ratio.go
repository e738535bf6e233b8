package otel

import (
	"strconv"
	"strings"
)

// parseRatio accepts a sampling ratio in (0,1]; anything else is ignored.
func parseRatio(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		return 0, false
	}
	return ratio, true
}
