package chat

import "sync"

// KeyLocks hands out one mutex per conversation.
//
// Entries are reference counted and dropped as soon as nobody holds or waits
// for them, so the table only grows with the number of conversations that are
// busy right now, never with the number of conversations ever seen. Two
// different keys never share a mutex: a holder that stalls only delays later
// callers of the same conversation.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[ConversationKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyLocks() *KeyLocks {
	return &KeyLocks{locks: make(map[ConversationKey]*keyLock)}
}

// Lock blocks until the conversation is free and returns the release func.
func (l *KeyLocks) Lock(key ConversationKey) (unlock func()) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Size is the number of conversations currently held or awaited.
func (l *KeyLocks) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
