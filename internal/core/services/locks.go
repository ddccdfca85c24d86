package services

import (
	"sync"

	"github.com/google/uuid"
)

// documentLocks hands out per-document advisory locks so lifecycle
// transitions and the embedding pipeline never run concurrently for the
// same document. Read-only queries never take these locks.
type documentLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newDocumentLocks() *documentLocks {
	return &documentLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

// Lock acquires the lock for a document and returns its unlock func.
// Entries are reference counted and removed once unused.
func (l *documentLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
