package lifecycle

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyedLocksSerializeSameKey(t *testing.T) {
	locks := newKeyedLocks()
	chatID, messageID := uuid.New(), uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(chatID, messageID)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyedLocksReleaseEntries(t *testing.T) {
	locks := newKeyedLocks()

	unlock := locks.lock(uuid.New(), uuid.New())
	assert.Len(t, locks.locks, 1)
	unlock()
	assert.Empty(t, locks.locks)
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := newKeyedLocks()
	chatID := uuid.New()

	unlockA := locks.lock(chatID, uuid.New())
	// A different message must not block.
	unlockB := locks.lock(chatID, uuid.New())
	unlockB()
	unlockA()
	assert.Empty(t, locks.locks)
}
