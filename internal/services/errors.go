// Package services defines the membership and role operations as the bot sees
// them. This file centralizes service-level validation errors so that callers
// can map them to user-facing texts consistently. Store outcomes (already
// present, role not found, ...) are defined in the domain package.
package services

import "errors"

// Validation errors.
var (
	// ErrMissingArgument is returned when a required command argument (the
	// role name) is empty.
	ErrMissingArgument = errors.New("missing argument")

	// ErrInvalidRoleName is returned when a role name contains characters
	// outside letters, digits, '_' and '-', or exceeds the length limit.
	ErrInvalidRoleName = errors.New("invalid role name")
)
