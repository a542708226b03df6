// Package lifecycle owns the message state machine: the monotonic
// sent → delivered → read progression, the accumulating read/delivery
// receipt sets, and the auxiliary single-field mutations.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/peerchat/chat-store/internal/model"
	registrystore "github.com/peerchat/chat-store/internal/registry/store"
	"github.com/peerchat/chat-store/internal/security"
)

// Invalidator is notified after every successful mutation so cached chat
// aggregates get dropped. The engine never owns the aggregate cache itself.
type Invalidator interface {
	InvalidateChat(ctx context.Context, chatID uuid.UUID)
}

// Engine applies lifecycle mutations to messages. Each mutation runs its
// read-modify-write under a per-message lock and persists through a single
// compare-and-swap update, so concurrent callers can never lose receipt
// entries or regress a status.
type Engine struct {
	store       registrystore.ChatStore
	locks       *keyedLocks
	invalidator Invalidator
}

// NewEngine returns an engine over the given store. invalidator may be nil.
func NewEngine(store registrystore.ChatStore, invalidator Invalidator) *Engine {
	return &Engine{store: store, locks: newKeyedLocks(), invalidator: invalidator}
}

// SendMessage appends a new message to the chat with status "sent".
func (e *Engine) SendMessage(ctx context.Context, chatID uuid.UUID, senderID, text string, media *string) (*model.Message, error) {
	msg, err := e.store.CreateMessage(ctx, model.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Text:     text,
		Media:    media,
	})
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, chatID)
	return msg, nil
}

// AdvanceStatus moves the message's status toward target in the monotonic
// sent < delivered < read order. A target at or below the current status
// leaves the status untouched. When actingUserID is given, it is absorbed
// into the matching receipt set idempotently; receipt sets only ever grow,
// even when the status itself no longer moves. If neither the status nor a
// set changes, no write is issued and the current snapshot is returned.
func (e *Engine) AdvanceStatus(ctx context.Context, chatID, messageID uuid.UUID, target model.Status, actingUserID *string) (*model.Message, error) {
	if !target.Valid() {
		return nil, &registrystore.ValidationError{Field: "status", Message: "unknown status " + string(target)}
	}

	unlock := e.locks.lock(chatID, messageID)
	defer unlock()

	msg, err := e.store.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}

	update := registrystore.MessageUpdate{ExpectedVersion: &msg.Version}
	if !msg.Status.IsAtLeast(target) {
		update.Status = &target
	}
	if actingUserID != nil {
		switch target {
		case model.StatusRead:
			if set, changed := msg.ReadBy.Clone().Add(*actingUserID); changed {
				update.ReadBy = set
			}
		case model.StatusDelivered:
			if set, changed := msg.DeliveredTo.Clone().Add(*actingUserID); changed {
				update.DeliveredTo = set
			}
		}
	}
	if update.Status == nil && update.ReadBy == nil && update.DeliveredTo == nil {
		return msg, nil
	}

	out, err := e.store.UpdateMessage(ctx, chatID, messageID, update)
	if err != nil {
		e.countConflict(err)
		return nil, err
	}
	if update.Status != nil && security.StatusTransitionsTotal != nil {
		security.StatusTransitionsTotal.WithLabelValues(string(target)).Inc()
	}
	e.invalidate(ctx, chatID)
	return out, nil
}

// SetReaction attaches a single reaction annotation to the message,
// replacing any previous one. Re-applying the same reaction is a no-op.
func (e *Engine) SetReaction(ctx context.Context, chatID, messageID uuid.UUID, emoji string) (*model.Message, error) {
	unlock := e.locks.lock(chatID, messageID)
	defer unlock()

	msg, err := e.store.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Reaction != nil && *msg.Reaction == emoji {
		return msg, nil
	}

	out, err := e.store.UpdateMessage(ctx, chatID, messageID, registrystore.MessageUpdate{
		Reaction:        &emoji,
		ExpectedVersion: &msg.Version,
	})
	if err != nil {
		e.countConflict(err)
		return nil, err
	}
	e.invalidate(ctx, chatID)
	return out, nil
}

// SoftDelete marks the message deleted. Irreversible; deleting an already
// deleted message is a no-op. Deleted messages keep their row but drop out
// of last-message computation.
func (e *Engine) SoftDelete(ctx context.Context, chatID, messageID uuid.UUID) (*model.Message, error) {
	unlock := e.locks.lock(chatID, messageID)
	defer unlock()

	msg, err := e.store.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return msg, nil
	}

	deleted := true
	out, err := e.store.UpdateMessage(ctx, chatID, messageID, registrystore.MessageUpdate{
		IsDeleted:       &deleted,
		ExpectedVersion: &msg.Version,
	})
	if err != nil {
		e.countConflict(err)
		return nil, err
	}
	e.invalidate(ctx, chatID)
	return out, nil
}

// EditText replaces the message text and stamps EditedAt. Edits on
// soft-deleted messages fail with InvalidStateError; re-submitting the
// current text is a no-op.
func (e *Engine) EditText(ctx context.Context, chatID, messageID uuid.UUID, newText string) (*model.Message, error) {
	unlock := e.locks.lock(chatID, messageID)
	defer unlock()

	msg, err := e.store.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, &registrystore.InvalidStateError{Message: "cannot edit a deleted message"}
	}
	if msg.Text == newText {
		return msg, nil
	}

	now := time.Now()
	out, err := e.store.UpdateMessage(ctx, chatID, messageID, registrystore.MessageUpdate{
		Text:            &newText,
		EditedAt:        &now,
		ExpectedVersion: &msg.Version,
	})
	if err != nil {
		e.countConflict(err)
		return nil, err
	}
	e.invalidate(ctx, chatID)
	return out, nil
}

func (e *Engine) invalidate(ctx context.Context, chatID uuid.UUID) {
	if e.invalidator != nil {
		e.invalidator.InvalidateChat(ctx, chatID)
	}
}

func (e *Engine) countConflict(err error) {
	var conflict *registrystore.ConcurrentModificationError
	if errors.As(err, &conflict) && security.ConcurrentConflictsTotal != nil {
		security.ConcurrentConflictsTotal.Inc()
	}
}
