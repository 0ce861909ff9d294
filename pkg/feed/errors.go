package feed

import "errors"

var (
	// ErrUnauthenticated is returned when a mutation has no resolved viewer.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized is returned when the viewer may not perform the action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput covers empty text, unknown categories and malformed values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned for an unknown post id.
	ErrNotFound = errors.New("not found")
	// ErrPersistenceCorrupt marks an unreadable durable slot.
	ErrPersistenceCorrupt = errors.New("persistence corrupt")
)

// Kind names the taxonomy entry err belongs to, for logs and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPersistenceCorrupt):
		return "persistence_corrupt"
	}
	return "internal"
}
