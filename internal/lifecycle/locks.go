package lifecycle

import (
	"sync"

	"github.com/google/uuid"
)

type lockKey struct {
	chatID    uuid.UUID
	messageID uuid.UUID
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedLocks provides per-(chat, message) mutual exclusion. Entries are
// created on demand and removed once the last holder releases, so the map
// stays bounded by the number of in-flight operations. Operations on
// different messages never contend.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[lockKey]*lockEntry
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[lockKey]*lockEntry)}
}

// lock acquires the mutex for the given message and returns its release
// function.
func (l *keyedLocks) lock(chatID, messageID uuid.UUID) func() {
	key := lockKey{chatID: chatID, messageID: messageID}

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
