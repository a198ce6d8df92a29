// Package store persists user rows keyed by the directory-assigned subject
// identifier. Implementations return pkg/platform/sentinel errors; the
// service layer translates them into coded domain errors.
package store

import (
	"fmt"

	"registrar/pkg/platform/sentinel"
)

// Typed failures shared by implementations.
var (
	ErrNotFound    = fmt.Errorf("user row: %w", sentinel.ErrNotFound)
	ErrConflict    = fmt.Errorf("user row: %w", sentinel.ErrConflict)
	ErrUnavailable = fmt.Errorf("user store: %w", sentinel.ErrUnavailable)
)
