package service

import "sync"

// KeyedLocks serializes mutations per key within the process: cart changes
// per user id, mission progress per mission id. Locks are created on demand
// and dropped once no goroutine holds or waits on them.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocks creates an empty lock table.
func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key's lock is held and returns its release function.
func (l *KeyedLocks) Lock(key string) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[key]
	if !ok {
		ul = &keyedLock{}
		l.locks[key] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *KeyedLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
