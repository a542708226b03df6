// Package chat assembles participant and message rows into in-memory chat
// aggregates for a given user.
package chat

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/peerchat/chat-store/internal/chat/aggregate"
	"github.com/peerchat/chat-store/internal/model"
	registrycache "github.com/peerchat/chat-store/internal/registry/cache"
	registrystore "github.com/peerchat/chat-store/internal/registry/store"
	"github.com/peerchat/chat-store/internal/security"
)

// Assembler builds chat aggregates from the store. It owns no persistent
// state of its own: every load recomputes from participant and message rows,
// with an optional short-lived cache in front.
type Assembler struct {
	store registrystore.ChatStore
	cache registrycache.ChatAggregateCache
	ttl   time.Duration
}

// NewAssembler returns an assembler over the given store. cache may be nil.
func NewAssembler(store registrystore.ChatStore, cache registrycache.ChatAggregateCache, ttl time.Duration) *Assembler {
	return &Assembler{store: store, cache: cache, ttl: ttl}
}

// LoadChatsForUser returns all chats the user participates in, ordered by
// last activity descending. Chats referenced by a participant row but absent
// from the chats table are stale memberships, not corruption: they are
// logged and skipped, never reported as errors.
func (a *Assembler) LoadChatsForUser(ctx context.Context, userID string) ([]aggregate.Chat, error) {
	if a.cacheAvailable() {
		if chats, ok := a.cache.Get(ctx, userID); ok {
			if security.CacheHitsTotal != nil {
				security.CacheHitsTotal.Inc()
			}
			return chats, nil
		}
		if security.CacheMissesTotal != nil {
			security.CacheMissesTotal.Inc()
		}
	}

	chatIDs, err := a.store.ListChatIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	chats := make([]aggregate.Chat, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		agg, err := a.assemble(ctx, chatID)
		if err != nil {
			var notFound *registrystore.NotFoundError
			if errors.As(err, &notFound) && notFound.Resource == "chat" {
				log.Warn("Skipping dangling participant row", "chat", chatID, "user", userID)
				continue
			}
			return nil, err
		}
		chats = append(chats, *agg)
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastActivity().After(chats[j].LastActivity())
	})

	if a.cacheAvailable() {
		a.cache.Set(ctx, userID, chats, a.ttl)
	}
	return chats, nil
}

// LoadChat assembles a single chat aggregate.
func (a *Assembler) LoadChat(ctx context.Context, chatID uuid.UUID) (*aggregate.Chat, error) {
	return a.assemble(ctx, chatID)
}

func (a *Assembler) assemble(ctx context.Context, chatID uuid.UUID) (*aggregate.Chat, error) {
	chat, err := a.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	participants, err := a.store.GetChatParticipants(ctx, chatID)
	if err != nil {
		return nil, err
	}
	messages, err := a.store.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}

	participantIDs := make([]string, len(participants))
	for i, p := range participants {
		participantIDs[i] = p.UserID
	}
	return &aggregate.Chat{
		ID:             chat.ID,
		ParticipantIDs: participantIDs,
		Messages:       messages,
		LastMessage:    aggregate.LastMessage(messages),
		CreatedAt:      chat.CreatedAt,
	}, nil
}

// CreateChat creates a chat among the given participants. The requester must
// be one of them and the distinct set must have at least two members. The
// chat row and all participant rows are written atomically.
func (a *Assembler) CreateChat(ctx context.Context, participantIDs []string, requesterID string) (*aggregate.Chat, error) {
	distinct := make([]string, 0, len(participantIDs))
	seen := make(map[string]bool, len(participantIDs))
	requesterIncluded := false
	for _, id := range participantIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		distinct = append(distinct, id)
		if id == requesterID {
			requesterIncluded = true
		}
	}
	if !requesterIncluded {
		return nil, &registrystore.InvalidParticipantsError{Message: "requester must be a participant of the new chat"}
	}
	if len(distinct) < 2 {
		return nil, &registrystore.InvalidParticipantsError{Message: "a chat needs at least two distinct participants"}
	}

	chat, participants, err := a.store.CreateChat(ctx, uuid.New(), distinct)
	if err != nil {
		return nil, err
	}
	a.invalidateUsers(ctx, distinct)

	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.UserID
	}
	return &aggregate.Chat{
		ID:             chat.ID,
		ParticipantIDs: ids,
		Messages:       []model.Message{},
		CreatedAt:      chat.CreatedAt,
	}, nil
}

// InvalidateChat drops cached aggregates for every participant of the chat.
// Mutation paths call this so readers re-assemble instead of serving a stale
// last-message reference.
func (a *Assembler) InvalidateChat(ctx context.Context, chatID uuid.UUID) {
	if !a.cacheAvailable() {
		return
	}
	participants, err := a.store.GetChatParticipants(ctx, chatID)
	if err != nil {
		log.Warn("Failed to invalidate aggregate cache", "chat", chatID, "err", err)
		return
	}
	for _, p := range participants {
		a.cache.Remove(ctx, p.UserID)
	}
}

func (a *Assembler) invalidateUsers(ctx context.Context, userIDs []string) {
	if !a.cacheAvailable() {
		return
	}
	for _, id := range userIDs {
		a.cache.Remove(ctx, id)
	}
}

func (a *Assembler) cacheAvailable() bool {
	return a.cache != nil && a.cache.Available()
}
