package sqlite

import registrystore "github.com/peerchat/chat-store/internal/registry/store"

// Re-export error types from registry/store so callers holding a concrete
// store don't need the registry import.
type SchemaError = registrystore.SchemaError
type NotFoundError = registrystore.NotFoundError
type ValidationError = registrystore.ValidationError
type DuplicateParticipantError = registrystore.DuplicateParticipantError
type ConcurrentModificationError = registrystore.ConcurrentModificationError
type NotReadyError = registrystore.NotReadyError
