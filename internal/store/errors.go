package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict signals an optimistic version mismatch; the caller must
	// re-read the current row and retry.
	ErrConflict = errors.New("version conflict")
)
