package sqlite

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/peerchat/chat-store/internal/config"
	registrystore "github.com/peerchat/chat-store/internal/registry/store"
)

//go:embed db/schema.sql
var schemaSQL string

// ForceImport is a no-op variable that can be referenced to ensure this
// package's init() runs.
var ForceImport = 0

// columnMigration is one additive, idempotent column addition. Column
// presence is the versioning mechanism: there is no version counter and no
// down-migration.
type columnMigration struct {
	column string
	ddl    string
}

// messageColumns lists the lifecycle columns of the messages table in the
// order they were introduced. Every entry states its default explicitly so
// rows written by older versions read back with well-defined values.
var messageColumns = []columnMigration{
	{"status", `ALTER TABLE messages ADD COLUMN status TEXT NOT NULL DEFAULT 'sent'`},
	{"read_by", `ALTER TABLE messages ADD COLUMN read_by TEXT NOT NULL DEFAULT '[]'`},
	{"delivered_to", `ALTER TABLE messages ADD COLUMN delivered_to TEXT NOT NULL DEFAULT '[]'`},
	{"reaction", `ALTER TABLE messages ADD COLUMN reaction TEXT`},
	{"is_deleted", `ALTER TABLE messages ADD COLUMN is_deleted INTEGER NOT NULL DEFAULT 0`},
	{"edited_at", `ALTER TABLE messages ADD COLUMN edited_at TIMESTAMP`},
	{"media", `ALTER TABLE messages ADD COLUMN media TEXT`},
	{"version", `ALTER TABLE messages ADD COLUMN version INTEGER NOT NULL DEFAULT 0`},
}

// EnsureSchema creates the four tables if absent and adds any missing
// message columns. Safe to run on every process start; a second run is a
// no-op. All failures are wrapped in SchemaError and are fatal to startup.
func EnsureSchema(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return &registrystore.SchemaError{Op: "open", Err: err}
	}
	if _, err := sqlDB.ExecContext(ctx, schemaSQL); err != nil {
		return &registrystore.SchemaError{Op: "create", Err: err}
	}

	present, err := messageColumnSet(db)
	if err != nil {
		return &registrystore.SchemaError{Op: "introspect", Err: err}
	}
	for _, cm := range messageColumns {
		if present[cm.column] {
			continue
		}
		log.Info("Adding messages column", "column", cm.column)
		if err := db.WithContext(ctx).Exec(cm.ddl).Error; err != nil {
			return &registrystore.SchemaError{Op: "alter", Err: fmt.Errorf("add column %s: %w", cm.column, err)}
		}
	}
	return nil
}

// schemaComplete reports whether all tables and message columns are present.
// Used to decide readiness when migrations at startup are disabled.
func schemaComplete(db *gorm.DB) (bool, error) {
	m := db.Migrator()
	for _, table := range []string{"users", "chats", "chat_participants", "messages"} {
		if !m.HasTable(table) {
			return false, nil
		}
	}
	present, err := messageColumnSet(db)
	if err != nil {
		return false, err
	}
	for _, cm := range messageColumns {
		if !present[cm.column] {
			return false, nil
		}
	}
	return true, nil
}

func messageColumnSet(db *gorm.DB) (map[string]bool, error) {
	var cols []struct {
		Name string `gorm:"column:name"`
	}
	if err := db.Raw(`PRAGMA table_info(messages)`).Scan(&cols).Error; err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c.Name] = true
	}
	return present, nil
}

type sqliteMigrator struct{}

func (m *sqliteMigrator) Name() string { return "sqlite-schema" }

func (m *sqliteMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg != nil && !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg != nil && cfg.DatastoreType != "" && cfg.DatastoreType != "sqlite" {
		return nil // skip if not using sqlite
	}
	log.Info("Running migration", "name", m.Name())
	db, err := openDB(cfg)
	if err != nil {
		return &registrystore.SchemaError{Op: "open", Err: err}
	}
	defer closeDB(db)
	return EnsureSchema(ctx, db)
}
