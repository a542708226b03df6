package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/peerchat/chat-store/internal/testutil/testdb"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(testdb.Path(t)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() { closeDB(db) })
	return db
}

func TestEnsureSchemaOnEmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureSchema(ctx, db))

	complete, err := schemaComplete(db)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestEnsureSchemaAddsMissingColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// A database written by an early version: the messages table exists but
	// carries none of the lifecycle columns.
	err := db.Exec(`CREATE TABLE messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`).Error
	require.NoError(t, err)
	require.NoError(t, db.Exec(`INSERT INTO messages (id, chat_id, sender_id, text, created_at)
		VALUES ('m1', 'c1', 'alice', 'hello', CURRENT_TIMESTAMP)`).Error)

	require.NoError(t, EnsureSchema(ctx, db))

	present, err := messageColumnSet(db)
	require.NoError(t, err)
	for _, cm := range messageColumns {
		assert.True(t, present[cm.column], "column %s should have been added", cm.column)
	}

	// Pre-existing rows read back with the declared defaults.
	var row struct {
		Status    string
		ReadBy    string
		IsDeleted int
		Version   int64
	}
	err = db.Raw(`SELECT status, read_by, is_deleted, version FROM messages WHERE id = 'm1'`).Scan(&row).Error
	require.NoError(t, err)
	assert.Equal(t, "sent", row.Status)
	assert.Equal(t, "[]", row.ReadBy)
	assert.Equal(t, 0, row.IsDeleted)
	assert.Equal(t, int64(0), row.Version)
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, EnsureSchema(ctx, db))

	complete, err := schemaComplete(db)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestSchemaCompleteOnPartialSchema(t *testing.T) {
	db := openTestDB(t)

	complete, err := schemaComplete(db)
	require.NoError(t, err)
	assert.False(t, complete)

	require.NoError(t, db.Exec(`CREATE TABLE users (id TEXT PRIMARY KEY)`).Error)
	complete, err = schemaComplete(db)
	require.NoError(t, err)
	assert.False(t, complete)
}
