package testdb

import (
	"path/filepath"
	"testing"
)

// Path returns the path of a disposable SQLite database file in a
// per-test temporary directory. The file is removed with the directory
// when the test finishes.
func Path(tb testing.TB) string {
	tb.Helper()
	return filepath.Join(tb.TempDir(), "chat-store-test.db")
}
