package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/peerchat/chat-store/internal/model"
)

// PagedMessages is a paginated, creation-ordered list of messages. Passing
// AfterCursor back to ListMessages restarts the sequence where it left off.
type PagedMessages struct {
	Data        []model.Message `json:"data"`
	AfterCursor *string         `json:"afterCursor,omitempty"`
}

// MessageUpdate defines a partial update of a message's mutable fields.
// Nil fields are left untouched. Status and the receipt sets may be written
// together in a single call so the lifecycle engine can persist an
// advancement atomically.
type MessageUpdate struct {
	Text        *string
	Status      *model.Status
	ReadBy      model.IDSet
	DeliveredTo model.IDSet
	Reaction    *string
	IsDeleted   *bool
	EditedAt    *time.Time
	Media       *string

	// ExpectedVersion, when set, turns the update into a compare-and-swap:
	// the write only applies if the persisted row still carries this version,
	// and fails with ConcurrentModificationError otherwise.
	ExpectedVersion *int64
}

// IsZero reports whether the update carries no field changes.
func (u MessageUpdate) IsZero() bool {
	return u.Text == nil && u.Status == nil && u.ReadBy == nil && u.DeliveredTo == nil &&
		u.Reaction == nil && u.IsDeleted == nil && u.EditedAt == nil && u.Media == nil
}

// ChatStore defines the primary data access interface for the chat store.
// It performs validation and persistence only; lifecycle rules live in the
// lifecycle engine and aggregate assembly in the chat package.
type ChatStore interface {
	// Users
	CreateUser(ctx context.Context, user model.User) (*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)

	// Chats. CreateChat writes the chat row and one participant row per id
	// in a single transaction.
	CreateChat(ctx context.Context, chatID uuid.UUID, participantIDs []string) (*model.Chat, []model.Participant, error)
	GetChat(ctx context.Context, chatID uuid.UUID) (*model.Chat, error)
	ListChatIDsForUser(ctx context.Context, userID string) ([]uuid.UUID, error)

	// Participants
	AddParticipant(ctx context.Context, chatID uuid.UUID, userID string) (*model.Participant, error)
	GetChatParticipants(ctx context.Context, chatID uuid.UUID) ([]model.Participant, error)

	// Messages
	CreateMessage(ctx context.Context, msg model.Message) (*model.Message, error)
	GetMessage(ctx context.Context, chatID, messageID uuid.UUID) (*model.Message, error)
	GetMessages(ctx context.Context, chatID uuid.UUID) ([]model.Message, error)
	ListMessages(ctx context.Context, chatID uuid.UUID, afterCursor *string, limit int) (*PagedMessages, error)
	UpdateMessage(ctx context.Context, chatID, messageID uuid.UUID, update MessageUpdate) (*model.Message, error)

	Close() error
}

// Loader creates a ChatStore from config.
type Loader func(ctx context.Context) (ChatStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
