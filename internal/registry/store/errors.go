package store

import "fmt"

// SchemaError indicates schema creation or migration failed. It is fatal to
// startup; no component may operate without a confirmed schema.
type SchemaError struct {
	Op  string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s failed: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// NotFoundError indicates the resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError indicates a client-side validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// DuplicateParticipantError indicates the (chat, user) membership pair
// already exists.
type DuplicateParticipantError struct {
	ChatID string
	UserID string
}

func (e *DuplicateParticipantError) Error() string {
	return fmt.Sprintf("user %s is already a participant of chat %s", e.UserID, e.ChatID)
}

// InvalidParticipantsError indicates a chat creation request with an invalid
// participant set (fewer than two distinct ids, or requester missing).
type InvalidParticipantsError struct {
	Message string
}

func (e *InvalidParticipantsError) Error() string {
	return e.Message
}

// InvalidStateError indicates a mutation rejected because of the message's
// current state (for example editing a soft-deleted message).
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

// ConcurrentModificationError indicates the persisted row changed between
// load and write. The caller may re-read and retry.
type ConcurrentModificationError struct {
	Resource string
	ID       string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Resource, e.ID)
}

// NotReadyError indicates an operation arrived before schema migration
// completed.
type NotReadyError struct{}

func (e *NotReadyError) Error() string {
	return "store is not ready: schema migration has not completed"
}
