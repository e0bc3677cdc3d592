package history

import (
	"sync"

	"github.com/accessally/accessally/internal/identity"
)

// Locker serializes read-modify-write cycles per identity within one process.
// It does not coordinate across processes sharing a store.
type Locker struct {
	mu    sync.Mutex
	locks map[identity.Token]*keyLock
}

type keyLock struct {
	mu      sync.Mutex
	waiters int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[identity.Token]*keyLock)}
}

// Lock blocks until id is free and returns the matching unlock func.
func (l *Locker) Lock(id identity.Token) (unlock func()) {
	l.mu.Lock()
	k, ok := l.locks[id]
	if !ok {
		k = &keyLock{}
		l.locks[id] = k
	}
	k.waiters++
	l.mu.Unlock()

	k.mu.Lock()
	return func() {
		k.mu.Unlock()
		l.mu.Lock()
		k.waiters--
		if k.waiters == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
