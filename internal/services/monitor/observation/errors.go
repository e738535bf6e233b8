package observation

import (
	"fmt"

	apperrors "github.com/lifesignal/monitor/internal/platform/errors"
)

// ErrValidation matches every ValidationError through errors.Is.
var ErrValidation = apperrors.New(apperrors.CodeValidation, "invalid raw record")

// ValidationError reports the first raw record that failed normalization.
type ValidationError struct {
	Index  int
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %d: %s %q: %s", e.Index, e.Field, e.Value, e.Reason)
}

// Unwrap exposes a VALIDATION domain error carrying the reason as metadata.
func (e *ValidationError) Unwrap() error {
	return apperrors.WithMetadata(apperrors.CodeValidation, e.Error(), map[string]string{
		"Field":  e.Field,
		"Reason": e.Reason,
	})
}
