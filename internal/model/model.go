package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the delivery lifecycle stage of a message.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// IsAtLeast returns true if the status is at or beyond the given stage
// in the sent < delivered < read order.
func (s Status) IsAtLeast(stage Status) bool {
	return statusRank(s) >= statusRank(stage)
}

// Valid returns true for one of the three known lifecycle stages.
func (s Status) Valid() bool {
	return statusRank(s) > 0
}

func statusRank(s Status) int {
	switch s {
	case StatusRead:
		return 3
	case StatusDelivered:
		return 2
	case StatusSent:
		return 1
	default:
		return 0
	}
}

// Presence represents the presence state reported for a user.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
	PresenceAway    Presence = "away"
)

// IDSet is a monotonically growing set of user ids persisted as a JSON
// array in a single text column. Insertion order is preserved so the
// on-disk encoding stays stable across rewrites.
type IDSet []string

// Contains reports whether id is in the set.
func (s IDSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add returns the set with id included and true if the set changed.
func (s IDSet) Add(id string) (IDSet, bool) {
	if s.Contains(id) {
		return s, false
	}
	return append(s, id), true
}

// Clone returns an independent copy of the set.
func (s IDSet) Clone() IDSet {
	if s == nil {
		return nil
	}
	out := make(IDSet, len(s))
	copy(out, s)
	return out
}

// Value implements driver.Valuer; nil encodes as an empty JSON array so the
// column never holds NULL for a set.
func (s IDSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode id set: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *IDSet) Scan(value interface{}) error {
	if value == nil {
		*s = IDSet{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported id set column type %T", value)
	}
	if len(data) == 0 {
		*s = IDSet{}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("failed to decode id set: %w", err)
	}
	*s = IDSet(ids)
	return nil
}

// User is an identity record supplied by the identity layer. The store
// persists it verbatim and never authenticates or interprets it.
type User struct {
	ID          string    `json:"id"                  gorm:"primaryKey"`
	DisplayName string    `json:"displayName"         gorm:"not null"`
	AvatarRef   *string   `json:"avatarRef,omitempty"`
	Presence    Presence  `json:"presence"            gorm:"not null;default:'offline'"`
	CreatedAt   time.Time `json:"createdAt"           gorm:"not null"`
}

func (User) TableName() string { return "users" }

// Chat is a conversation row. Participants and messages are derived via
// joins; the row itself carries only identity.
type Chat struct {
	ID        uuid.UUID `json:"id"        gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (Chat) TableName() string { return "chats" }

// Participant links a user to a chat. Membership is immutable once created.
type Participant struct {
	ID        uuid.UUID `json:"id"        gorm:"primaryKey;type:uuid"`
	ChatID    uuid.UUID `json:"chatId"    gorm:"not null;type:uuid;uniqueIndex:idx_chat_user"`
	UserID    string    `json:"userId"    gorm:"not null;uniqueIndex:idx_chat_user"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (Participant) TableName() string { return "chat_participants" }

// Message is a chat message. ChatID, SenderID, Text-at-creation and
// CreatedAt are written once; the lifecycle fields are mutated only through
// partial updates that also bump Version.
type Message struct {
	ID          uuid.UUID  `json:"id"                 gorm:"primaryKey;type:uuid"`
	ChatID      uuid.UUID  `json:"chatId"             gorm:"not null;type:uuid;index"`
	SenderID    string     `json:"senderId"           gorm:"not null"`
	Text        string     `json:"text"               gorm:"not null"`
	CreatedAt   time.Time  `json:"createdAt"          gorm:"not null;index"`
	Status      Status     `json:"status"             gorm:"not null;default:'sent'"`
	ReadBy      IDSet      `json:"readBy"             gorm:"type:text;not null;default:'[]'"`
	DeliveredTo IDSet      `json:"deliveredTo"        gorm:"type:text;not null;default:'[]'"`
	Reaction    *string    `json:"reaction,omitempty"`
	IsDeleted   bool       `json:"isDeleted"          gorm:"not null;default:false"`
	EditedAt    *time.Time `json:"editedAt,omitempty"`
	Media       *string    `json:"media,omitempty"`
	// Version is bumped on every mutation and checked by compare-and-swap
	// updates to detect concurrent writers on other store handles.
	Version int64 `json:"-" gorm:"not null;default:0"`
}

func (Message) TableName() string { return "messages" }
