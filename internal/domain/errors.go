package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrTransient marks a recompute that exhausted its retry budget (version
// conflicts or upstream timeouts). The caller may redeliver the event; the
// edge keeps its last-known-good strength in the meantime.
var ErrTransient = errors.New("transient failure")

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Msg)
}

// TransientError wraps ErrTransient with the edge key so the caller can retry
// or audit.
func TransientError(argumentID uuid.UUID, cause error) error {
	return fmt.Errorf("argument %s: %w: %w", argumentID, ErrTransient, cause)
}
