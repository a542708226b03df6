package aggregate

import (
	"time"

	"github.com/google/uuid"

	"github.com/peerchat/chat-store/internal/model"
)

// Chat is an assembled, point-in-time view of a chat: its participants, its
// full message sequence, and the derived last message. Aggregates are
// disposable snapshots; the store remains the source of truth and callers
// must re-query rather than trust one to stay fresh.
type Chat struct {
	ID             uuid.UUID       `json:"id"`
	ParticipantIDs []string        `json:"participantIds"`
	Messages       []model.Message `json:"messages"`
	LastMessage    *model.Message  `json:"lastMessage,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// LastActivity is the chat's ordering key: the last message's creation time,
// falling back to the chat's own creation time for empty chats.
func (c *Chat) LastActivity() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

// LastMessage returns the non-deleted message with the maximum creation
// timestamp, or nil when every message is soft-deleted or the chat is empty.
// Soft-deleted messages never surface as a chat's last message.
func LastMessage(messages []model.Message) *model.Message {
	var last *model.Message
	for i := range messages {
		if messages[i].IsDeleted {
			continue
		}
		if last == nil || messages[i].CreatedAt.After(last.CreatedAt) {
			last = &messages[i]
		}
	}
	if last == nil {
		return nil
	}
	out := *last
	return &out
}
