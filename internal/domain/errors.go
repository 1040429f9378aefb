package domain

import "errors"

// Store outcomes. Success is a nil error; every other outcome of a store
// operation is one of these values and is an expected result, not a failure.
var (
	// ErrAlreadyPresent is returned by an opt-in for a member already listed.
	ErrAlreadyPresent = errors.New("member already opted in")

	// ErrNotPresent is returned by an opt-out for a member that is not listed.
	ErrNotPresent = errors.New("member not opted in")

	// ErrRoleExists is returned when creating a role whose name is taken.
	ErrRoleExists = errors.New("role already exists")

	// ErrRoleNotFound is returned by any role operation naming an unknown role.
	ErrRoleNotFound = errors.New("role not found")

	// ErrAlreadyMember is returned when adding a user already in the role.
	ErrAlreadyMember = errors.New("user already in role")

	// ErrNotMember is returned when removing a user that is not in the role.
	ErrNotMember = errors.New("user not in role")
)

var outcomes = []error{
	ErrAlreadyPresent, ErrNotPresent,
	ErrRoleExists, ErrRoleNotFound,
	ErrAlreadyMember, ErrNotMember,
}

// IsOutcome reports whether err is (or wraps) one of the store outcomes above.
func IsOutcome(err error) bool {
	for _, o := range outcomes {
		if errors.Is(err, o) {
			return true
		}
	}
	return false
}
