package domain

import "fmt"

// EntityType identifies the kind of record an error refers to.
type EntityType string

// Entity identifiers used in not-found errors and audit records.
const (
	EntityNote    EntityType = "note"
	EntitySubitem EntityType = "subitem"
	EntityUser    EntityType = "user"
)

// ErrNotFound is returned when a record is absent or owned by another user.
// The two cases are deliberately indistinguishable so that probing ids leaks
// nothing about other users' data.
type ErrNotFound struct {
	Entity EntityType
	ID     int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found or unauthorized", e.Entity, e.ID)
}

// ValidationError reports a malformed request rejected before touching the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrUsernameTaken is returned by CreateUser when the name is already registered.
type ErrUsernameTaken struct {
	Username string
}

func (e ErrUsernameTaken) Error() string {
	return fmt.Sprintf("username %s already exists", e.Username)
}
