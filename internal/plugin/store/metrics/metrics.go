package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/peerchat/chat-store/internal/model"
	"github.com/peerchat/chat-store/internal/registry/store"
	"github.com/peerchat/chat-store/internal/security"
)

// Wrap returns a ChatStore that records StoreLatency for every operation.
func Wrap(inner store.ChatStore) store.ChatStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.ChatStore
}

func observe(op string, start time.Time) {
	if security.StoreLatency == nil {
		return
	}
	security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	defer observe("create_user", time.Now())
	return m.inner.CreateUser(ctx, user)
}

func (m *metricsStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	defer observe("get_user", time.Now())
	return m.inner.GetUser(ctx, userID)
}

func (m *metricsStore) CreateChat(ctx context.Context, chatID uuid.UUID, participantIDs []string) (*model.Chat, []model.Participant, error) {
	defer observe("create_chat", time.Now())
	return m.inner.CreateChat(ctx, chatID, participantIDs)
}

func (m *metricsStore) GetChat(ctx context.Context, chatID uuid.UUID) (*model.Chat, error) {
	defer observe("get_chat", time.Now())
	return m.inner.GetChat(ctx, chatID)
}

func (m *metricsStore) ListChatIDsForUser(ctx context.Context, userID string) ([]uuid.UUID, error) {
	defer observe("list_chat_ids", time.Now())
	return m.inner.ListChatIDsForUser(ctx, userID)
}

func (m *metricsStore) AddParticipant(ctx context.Context, chatID uuid.UUID, userID string) (*model.Participant, error) {
	defer observe("add_participant", time.Now())
	return m.inner.AddParticipant(ctx, chatID, userID)
}

func (m *metricsStore) GetChatParticipants(ctx context.Context, chatID uuid.UUID) ([]model.Participant, error) {
	defer observe("get_participants", time.Now())
	return m.inner.GetChatParticipants(ctx, chatID)
}

func (m *metricsStore) CreateMessage(ctx context.Context, msg model.Message) (*model.Message, error) {
	defer observe("create_message", time.Now())
	return m.inner.CreateMessage(ctx, msg)
}

func (m *metricsStore) GetMessage(ctx context.Context, chatID, messageID uuid.UUID) (*model.Message, error) {
	defer observe("get_message", time.Now())
	return m.inner.GetMessage(ctx, chatID, messageID)
}

func (m *metricsStore) GetMessages(ctx context.Context, chatID uuid.UUID) ([]model.Message, error) {
	defer observe("get_messages", time.Now())
	return m.inner.GetMessages(ctx, chatID)
}

func (m *metricsStore) ListMessages(ctx context.Context, chatID uuid.UUID, afterCursor *string, limit int) (*store.PagedMessages, error) {
	defer observe("list_messages", time.Now())
	return m.inner.ListMessages(ctx, chatID, afterCursor, limit)
}

func (m *metricsStore) UpdateMessage(ctx context.Context, chatID, messageID uuid.UUID, update store.MessageUpdate) (*model.Message, error) {
	defer observe("update_message", time.Now())
	return m.inner.UpdateMessage(ctx, chatID, messageID, update)
}

func (m *metricsStore) Close() error {
	return m.inner.Close()
}
