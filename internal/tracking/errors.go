package tracking

import (
	"errors"
	"fmt"
)

// ErrAgentNotFound is returned when a report references an unknown agent
var ErrAgentNotFound = errors.New("agent not found")

// ValidationError rejects a malformed report before any state mutation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
