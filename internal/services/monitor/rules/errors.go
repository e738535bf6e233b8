package rules

import (
	apperrors "github.com/lifesignal/monitor/internal/platform/errors"
)

// ErrInvalidConfig matches every ConfigError.
var ErrInvalidConfig = apperrors.New(apperrors.CodeInvalidRuleConfig, "invalid rule configuration")

// ConfigError reports a registry entry that cannot be evaluated.
type ConfigError struct {
	Kind   Kind
	Reason string
}

func (e *ConfigError) Error() string {
	return "rule " + string(e.Kind) + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return apperrors.WithMetadata(apperrors.CodeInvalidRuleConfig, e.Error(), map[string]string{
		"Kind": string(e.Kind),
	})
}

func configError(kind Kind, reason string) error {
	return &ConfigError{Kind: kind, Reason: reason}
}
