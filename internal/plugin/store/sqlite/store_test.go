package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerchat/chat-store/internal/config"
	"github.com/peerchat/chat-store/internal/model"
	"github.com/peerchat/chat-store/internal/plugin/store/sqlite"
	registrymigrate "github.com/peerchat/chat-store/internal/registry/migrate"
	registrystore "github.com/peerchat/chat-store/internal/registry/store"
	"github.com/peerchat/chat-store/internal/testutil/testdb"
)

func setupTestStore(t *testing.T) (registrystore.ChatStore, context.Context) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DBPath = testdb.Path(t)
	ctx := config.WithContext(context.Background(), &cfg)

	// Ensure sqlite store plugin is registered
	_ = sqlite.ForceImport

	// Run migrations
	err := registrymigrate.RunAll(ctx)
	require.NoError(t, err)

	// Initialize store
	loader, err := registrystore.Select("sqlite")
	require.NoError(t, err)

	store, err := loader(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, ctx
}

func makeChat(t *testing.T, store registrystore.ChatStore, ctx context.Context, userIDs ...string) uuid.UUID {
	t.Helper()
	chatID := uuid.New()
	_, _, err := store.CreateChat(ctx, chatID, userIDs)
	require.NoError(t, err)
	return chatID
}

func TestMigrationIsIdempotent(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DBPath = testdb.Path(t)
	ctx := config.WithContext(context.Background(), &cfg)

	require.NoError(t, registrymigrate.RunAll(ctx))
	// A second run over the same file must be a no-op.
	require.NoError(t, registrymigrate.RunAll(ctx))

	loader, err := registrystore.Select("sqlite")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.CreateUser(ctx, model.User{ID: "alice", DisplayName: "Alice"})
	require.NoError(t, err)
}

func TestCreateAndGetUser(t *testing.T) {
	store, ctx := setupTestStore(t)

	avatar := "https://cdn.example/alice.png"
	user, err := store.CreateUser(ctx, model.User{
		ID:          "alice",
		DisplayName: "Alice",
		AvatarRef:   &avatar,
		Presence:    model.PresenceOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PresenceOnline, user.Presence)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)
	require.NotNil(t, got.AvatarRef)
	assert.Equal(t, avatar, *got.AvatarRef)
}

func TestCreateUserDefaultsAndValidation(t *testing.T) {
	store, ctx := setupTestStore(t)

	user, err := store.CreateUser(ctx, model.User{ID: "bob", DisplayName: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, model.PresenceOffline, user.Presence)

	var validation *registrystore.ValidationError
	_, err = store.CreateUser(ctx, model.User{ID: "", DisplayName: "Nobody"})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "id", validation.Field)

	_, err = store.CreateUser(ctx, model.User{ID: "bob", DisplayName: "Bob Again"})
	require.ErrorAs(t, err, &validation)
}

func TestGetUserNotFound(t *testing.T) {
	store, ctx := setupTestStore(t)

	var notFound *registrystore.NotFoundError
	_, err := store.GetUser(ctx, "nobody")
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "user", notFound.Resource)
}

func TestCreateChatWithParticipants(t *testing.T) {
	store, ctx := setupTestStore(t)

	chatID := uuid.New()
	chat, participants, err := store.CreateChat(ctx, chatID, []string{"alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, chatID, chat.ID)
	require.Len(t, participants, 2)

	got, err := store.GetChat(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, chatID, got.ID)

	members, err := store.GetChatParticipants(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].UserID)
	assert.Equal(t, "bob", members[1].UserID)

	ids, err := store.ListChatIDsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{chatID}, ids)
}

func TestCreateChatDuplicateParticipantRollsBack(t *testing.T) {
	store, ctx := setupTestStore(t)

	chatID := uuid.New()
	_, _, err := store.CreateChat(ctx, chatID, []string{"alice", "alice"})
	var duplicate *registrystore.DuplicateParticipantError
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, "alice", duplicate.UserID)

	// The transaction must have rolled back the chat row too.
	var notFound *registrystore.NotFoundError
	_, err = store.GetChat(ctx, chatID)
	require.ErrorAs(t, err, &notFound)
}

func TestAddParticipant(t *testing.T) {
	store, ctx := setupTestStore(t)
	chatID := makeChat(t, store, ctx, "alice", "bob")

	p, err := store.AddParticipant(ctx, chatID, "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", p.UserID)

	var duplicate *registrystore.DuplicateParticipantError
	_, err = store.AddParticipant(ctx, chatID, "carol")
	require.ErrorAs(t, err, &duplicate)

	var notFound *registrystore.NotFoundError
	_, err = store.AddParticipant(ctx, uuid.New(), "dave")
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "chat", notFound.Resource)
}

func TestCreateMessageDefaults(t *testing.T) {
	store, ctx := setupTestStore(t)
	chatID := makeChat(t, store, ctx, "alice", "bob")

	msg, err := store.CreateMessage(ctx, model.Message{
		ChatID:   chatID,
		SenderID: "alice",
		Text:     "hello",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Equal(t, model.StatusSent, msg.Status)
	assert.Empty(t, msg.ReadBy)
	assert.Empty(t, msg.DeliveredTo)
	assert.False(t, msg.IsDeleted)
	assert.Equal(t, int64(0), msg.Version)

	got, err := store.GetMessage(ctx, chatID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.NotNil(t, got.ReadBy)
	assert.NotNil(t, got.DeliveredTo)
}

func TestCreateMessageUnknownChat(t *testing.T) {
	store, ctx := setupTestStore(t)

	var notFound *registrystore.NotFoundError
	_, err := store.CreateMessage(ctx, model.Message{
		ChatID:   uuid.New(),
		SenderID: "alice",
		Text:     "hello",
	})
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "chat", notFound.Resource)
}

func TestGetMessageScopedToChat(t *testing.T) {
	store, ctx := setupTestStore(t)
	chatA := makeChat(t, store, ctx, "alice", "bob")
	chatB := makeChat(t, store, ctx, "alice", "carol")

	msg, err := store.CreateMessage(ctx, model.Message{ChatID: chatA, SenderID: "alice", Text: "hi"})
	require.NoError(t, err)

	var notFound *registrystore.NotFoundError
	_, err = store.GetMessage(ctx, chatB, msg.ID)
	require.ErrorAs(t, err, &notFound)
}

func TestMessageOrderingAndPagination(t *testing.T) {
	store, ctx := setupTestStore(t)
	chatID := makeChat(t, store, ctx, "alice", "bob")

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	texts := []string{"one", "two", "three", "four", "five"}
	for i, text := range texts {
		_, err := store.CreateMessage(ctx, model.Message{
			ChatID:    chatID,
			SenderID:  "alice",
			Text:      text,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	all, err := store.GetMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, msg := range all {
		assert.Equal(t, texts[i], msg.Text)
	}

	// Page through with a cursor; the sequence restarts exactly where the
	// previous page left off.
	var collected []string
	var cursor *string
	for {
		page, err := store.ListMessages(ctx, chatID, cursor, 2)
		require.NoError(t, err)
		for _, msg := range page.Data {
			collected = append(collected, msg.Text)
		}
		if page.AfterCursor == nil {
			break
		}
		cursor = page.AfterCursor
	}
	assert.Equal(t, texts, collected)
}

func TestPaginationWithTiedTimestamps(t *testing.T) {
	store, ctx := setupTestStore(t)
	chatID := makeChat(t, store, ctx, "alice", "bob")

	// Three of the five messages share one creation timestamp; paging must
	// still visit every row exactly once.
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	stamps := []time.Time{base, base.Add(time.Second), base.Add(time.Second), base.Add(time.Second), base.Add(2 * time.Second)}
	for i, at := range stamps {
		_, err := store.CreateMessage(ctx, model.Message{
			ChatID:    chatID,
			SenderID:  "alice",
			Text:      fmt.Sprintf("msg-%d", i),
			CreatedAt: at,
		})
		require.NoError(t, err)
	}

	all, err := store.GetMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, all, 5)

	var collected []uuid.UUID
	var cursor *string
	for {
		page, err := store.ListMessages(ctx, chatID, cursor, 2)
		require.NoError(t, err)
		for _, msg := range page.Data {
			collected = append(collected, msg.ID)
		}
		if page.AfterCursor == nil {
			break
		}
		cursor = page.AfterCursor
	}

	require.Len(t, collected, 5)
	for i, msg := range all {
		assert.Equal(t, msg.ID, collected[i])
	}
}

func TestPaginationFinalPageHasNoCursor(t *testing.T) {
	store, ctx := setupTestStore(t)
	chatID := makeChat(t, store, ctx, "alice", "bob")

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 2; i++ {
		_, err := store.CreateMessage(ctx, model.Message{
			ChatID:    chatID,
			SenderID:  "alice",
			Text:      fmt.Sprintf("msg-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	// Exactly one full page: no cursor, no empty extra round trip.
	page, err := store.ListMessages(ctx, chatID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Nil(t, page.AfterCursor)
}

func TestUpdateMessagePartial(t *testing.T) {
	store, ctx := setupTestStore(t)
	chatID := makeChat(t, store, ctx, "alice", "bob")

	msg, err := store.CreateMessage(ctx, model.Message{ChatID: chatID, SenderID: "alice", Text: "hello"})
	require.NoError(t, err)

	emoji := "👍"
	updated, err := store.UpdateMessage(ctx, chatID, msg.ID, registrystore.MessageUpdate{Reaction: &emoji})
	require.NoError(t, err)
	require.NotNil(t, updated.Reaction)
	assert.Equal(t, emoji, *updated.Reaction)
	// Untouched fields survive partial updates.
	assert.Equal(t, "hello", updated.Text)
	assert.Equal(t, model.StatusSent, updated.Status)
	assert.Equal(t, msg.Version+1, updated.Version)

	status := model.StatusDelivered
	updated, err = store.UpdateMessage(ctx, chatID, msg.ID, registrystore.MessageUpdate{
		Status:      &status,
		DeliveredTo: model.IDSet{"bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, updated.Status)
	assert.True(t, updated.DeliveredTo.Contains("bob"))
	require.NotNil(t, updated.Reaction)
	assert.Equal(t, emoji, *updated.Reaction)
}

func TestUpdateMessageCompareAndSwap(t *testing.T) {
	store, ctx := setupTestStore(t)
	chatID := makeChat(t, store, ctx, "alice", "bob")

	msg, err := store.CreateMessage(ctx, model.Message{ChatID: chatID, SenderID: "alice", Text: "hello"})
	require.NoError(t, err)

	stale := msg.Version
	emoji := "🎉"
	_, err = store.UpdateMessage(ctx, chatID, msg.ID, registrystore.MessageUpdate{
		Reaction:        &emoji,
		ExpectedVersion: &stale,
	})
	require.NoError(t, err)

	// The same expected version no longer matches.
	var conflict *registrystore.ConcurrentModificationError
	_, err = store.UpdateMessage(ctx, chatID, msg.ID, registrystore.MessageUpdate{
		Reaction:        &emoji,
		ExpectedVersion: &stale,
	})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "message", conflict.Resource)
}

func TestUpdateMessageNotFound(t *testing.T) {
	store, ctx := setupTestStore(t)
	chatID := makeChat(t, store, ctx, "alice", "bob")

	text := "edited"
	var notFound *registrystore.NotFoundError
	_, err := store.UpdateMessage(ctx, chatID, uuid.New(), registrystore.MessageUpdate{Text: &text})
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "message", notFound.Resource)
}

func TestStoreNotReadyBeforeMigration(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DBPath = testdb.Path(t)
	cfg.DatastoreMigrateAtStart = false
	ctx := config.WithContext(context.Background(), &cfg)

	loader, err := registrystore.Select("sqlite")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	defer store.Close()

	var notReady *registrystore.NotReadyError
	_, err = store.GetUser(ctx, "alice")
	require.ErrorAs(t, err, &notReady)

	_, _, err = store.CreateChat(ctx, uuid.New(), []string{"alice", "bob"})
	assert.True(t, errors.As(err, &notReady))
}
