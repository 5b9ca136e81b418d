package app

import (
	"sync"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

// KeyedLocks serializes operations per session. Everything that
// read-checks-writes shared session state (capacity, roster, sequence
// numbers) runs under the session's mutex, store I/O included, so no
// concurrent admission can observe a stale count. Cross-session
// operations never share a lock.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[domain.SessionID]*sync.Mutex
}

func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[domain.SessionID]*sync.Mutex)}
}

// Lock acquires the session's mutex and returns its unlock func.
func (k *KeyedLocks) Lock(id domain.SessionID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
