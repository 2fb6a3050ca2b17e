package usecase

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLock is a set of non-blocking per-definition locks.
type keyedLock struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[uuid.UUID]struct{})}
}

// TryLock acquires the lock for id, reporting false if it is already held.
func (l *keyedLock) TryLock(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[id]; ok {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

func (l *keyedLock) Unlock(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}
