// Package keylock hands out one mutex per key. Entries are reference counted
// and dropped once nobody holds or waits on them.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Locker {
	return &Locker{entries: make(map[string]*entry)}
}

// Lock blocks until the key is free and returns its unlock func.
func (l *Locker) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

// tracked is the number of keys currently held or waited on.
func (l *Locker) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
