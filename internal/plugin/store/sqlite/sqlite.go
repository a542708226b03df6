package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/peerchat/chat-store/internal/config"
	"github.com/peerchat/chat-store/internal/model"
	registrymigrate "github.com/peerchat/chat-store/internal/registry/migrate"
	registrystore "github.com/peerchat/chat-store/internal/registry/store"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "sqlite",
		Loader: func(ctx context.Context) (registrystore.ChatStore, error) {
			cfg := config.FromContext(ctx)
			db, err := openDB(cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to open sqlite database: %w", err)
			}
			store := &SQLiteStore{db: db, cfg: cfg}
			if cfg == nil || cfg.DatastoreMigrateAtStart {
				if err := EnsureSchema(ctx, db); err != nil {
					closeDB(db)
					return nil, err
				}
				store.ready.Store(true)
			} else {
				// Migration is someone else's job; accept operations only
				// once the schema is confirmed complete.
				complete, err := schemaComplete(db)
				if err != nil {
					closeDB(db)
					return nil, &registrystore.SchemaError{Op: "introspect", Err: err}
				}
				store.ready.Store(complete)
				if !complete {
					log.Warn("Schema incomplete; operations will fail until migration runs", "db", cfg.DBPath)
				}
			}
			return store, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &sqliteMigrator{}})
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	path := "chat-store.db"
	if cfg != nil && cfg.DBPath != "" {
		path = cfg.DBPath
	}
	dsn := path
	if !strings.HasPrefix(path, ":memory:") && !strings.HasPrefix(path, "file:") {
		// Serialize physical writes with a busy timeout so concurrent
		// logical operations surface as waits, not SQLITE_BUSY errors.
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// SQLiteStore implements ChatStore on an embedded SQLite database via GORM.
type SQLiteStore struct {
	db    *gorm.DB
	cfg   *config.Config
	ready atomic.Bool
}

func (s *SQLiteStore) checkReady() error {
	if !s.ready.Load() {
		return &registrystore.NotReadyError{}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, &registrystore.ValidationError{Field: "id", Message: "must not be empty"}
	}
	if user.DisplayName == "" {
		return nil, &registrystore.ValidationError{Field: "displayName", Message: "must not be empty"}
	}
	if user.Presence == "" {
		user.Presence = model.PresenceOffline
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, &registrystore.ValidationError{Field: "id", Message: "user already exists"}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &registrystore.NotFoundError{Resource: "user", ID: userID}
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// --- Chats ---

func (s *SQLiteStore) CreateChat(ctx context.Context, chatID uuid.UUID, participantIDs []string) (*model.Chat, []model.Participant, error) {
	if err := s.checkReady(); err != nil {
		return nil, nil, err
	}
	if chatID == uuid.Nil {
		return nil, nil, &registrystore.ValidationError{Field: "chatId", Message: "must not be empty"}
	}
	if len(participantIDs) == 0 {
		return nil, nil, &registrystore.ValidationError{Field: "participantIds", Message: "must not be empty"}
	}
	for _, id := range participantIDs {
		if id == "" {
			return nil, nil, &registrystore.ValidationError{Field: "participantIds", Message: "must not contain empty ids"}
		}
	}

	now := time.Now()
	chat := model.Chat{ID: chatID, CreatedAt: now}
	participants := make([]model.Participant, 0, len(participantIDs))
	for _, userID := range participantIDs {
		participants = append(participants, model.Participant{
			ID:        uuid.New(),
			ChatID:    chatID,
			UserID:    userID,
			CreatedAt: now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}
		for i := range participants {
			if err := tx.Create(&participants[i]).Error; err != nil {
				if isUniqueViolation(err) {
					return &registrystore.DuplicateParticipantError{ChatID: chatID.String(), UserID: participants[i].UserID}
				}
				return fmt.Errorf("failed to create participant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &chat, participants, nil
}

func (s *SQLiteStore) GetChat(ctx context.Context, chatID uuid.UUID) (*model.Chat, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var chat model.Chat
	if err := s.db.WithContext(ctx).Where("id = ?", chatID).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &registrystore.NotFoundError{Resource: "chat", ID: chatID.String()}
		}
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return &chat, nil
}

func (s *SQLiteStore) ListChatIDsForUser(ctx context.Context, userID string) ([]uuid.UUID, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("chat_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chats for user: %w", err)
	}
	return ids, nil
}

// --- Participants ---

func (s *SQLiteStore) AddParticipant(ctx context.Context, chatID uuid.UUID, userID string) (*model.Participant, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, &registrystore.ValidationError{Field: "userId", Message: "must not be empty"}
	}
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	participant := model.Participant{
		ID:        uuid.New(),
		ChatID:    chatID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&participant).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, &registrystore.DuplicateParticipantError{ChatID: chatID.String(), UserID: userID}
		}
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return &participant, nil
}

func (s *SQLiteStore) GetChatParticipants(ctx context.Context, chatID uuid.UUID) ([]model.Participant, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var participants []model.Participant
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

// --- Messages ---

func (s *SQLiteStore) CreateMessage(ctx context.Context, msg model.Message) (*model.Message, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if msg.SenderID == "" {
		return nil, &registrystore.ValidationError{Field: "senderId", Message: "must not be empty"}
	}
	if msg.ChatID == uuid.Nil {
		return nil, &registrystore.ValidationError{Field: "chatId", Message: "must not be empty"}
	}
	if _, err := s.GetChat(ctx, msg.ChatID); err != nil {
		return nil, err
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Status == "" {
		msg.Status = model.StatusSent
	}
	if msg.ReadBy == nil {
		msg.ReadBy = model.IDSet{}
	}
	if msg.DeliveredTo == nil {
		msg.DeliveredTo = model.IDSet{}
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &msg, nil
}

func (s *SQLiteStore) GetMessage(ctx context.Context, chatID, messageID uuid.UUID) (*model.Message, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var msg model.Message
	err := s.db.WithContext(ctx).
		Where("id = ? AND chat_id = ?", messageID, chatID).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &registrystore.NotFoundError{Resource: "message", ID: messageID.String()}
		}
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return &msg, nil
}

func (s *SQLiteStore) GetMessages(ctx context.Context, chatID uuid.UUID) ([]model.Message, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, chatID uuid.UUID, afterCursor *string, limit int) (*registrystore.PagedMessages, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	tx := s.db.WithContext(ctx).Where("chat_id = ?", chatID)
	if afterCursor != nil {
		// Resume on the full (created_at, id) ordering tuple so rows sharing
		// the cursor row's timestamp are not skipped.
		tx = tx.Where(
			`created_at > (SELECT created_at FROM messages WHERE id = ?)
			 OR (created_at = (SELECT created_at FROM messages WHERE id = ?) AND id > ?)`,
			*afterCursor, *afterCursor, *afterCursor)
	}
	// Fetch one row past the limit so the cursor is only handed out when a
	// next page actually exists.
	var messages []model.Message
	if err := tx.Order("created_at ASC, id ASC").Limit(limit + 1).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	page := &registrystore.PagedMessages{Data: messages}
	if len(messages) > limit {
		page.Data = messages[:limit]
		cursor := page.Data[limit-1].ID.String()
		page.AfterCursor = &cursor
	}
	return page, nil
}

func (s *SQLiteStore) UpdateMessage(ctx context.Context, chatID, messageID uuid.UUID, update registrystore.MessageUpdate) (*model.Message, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if update.IsZero() {
		return s.GetMessage(ctx, chatID, messageID)
	}

	// Every mutation bumps the version so compare-and-swap callers can
	// detect writers they did not serialize with.
	updates := map[string]interface{}{"version": gorm.Expr("version + 1")}
	if update.Text != nil {
		updates["text"] = *update.Text
	}
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if update.ReadBy != nil {
		updates["read_by"] = update.ReadBy
	}
	if update.DeliveredTo != nil {
		updates["delivered_to"] = update.DeliveredTo
	}
	if update.Reaction != nil {
		updates["reaction"] = *update.Reaction
	}
	if update.IsDeleted != nil {
		updates["is_deleted"] = *update.IsDeleted
	}
	if update.EditedAt != nil {
		updates["edited_at"] = *update.EditedAt
	}
	if update.Media != nil {
		updates["media"] = *update.Media
	}

	tx := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND chat_id = ?", messageID, chatID)
	if update.ExpectedVersion != nil {
		tx = tx.Where("version = ?", *update.ExpectedVersion)
	}
	result := tx.Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Message{}).
			Where("id = ? AND chat_id = ?", messageID, chatID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check message existence: %w", err)
		}
		if count == 0 {
			return nil, &registrystore.NotFoundError{Resource: "message", ID: messageID.String()}
		}
		return nil, &registrystore.ConcurrentModificationError{Resource: "message", ID: messageID.String()}
	}
	return s.GetMessage(ctx, chatID, messageID)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	// The gorm sqlite driver may translate constraint errors before we see them.
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
