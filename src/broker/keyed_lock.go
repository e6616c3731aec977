package broker

import (
	"fmt"
	"sync"
)

// keyedLock serializes work per (user, symbol) pair. PlaceOrder and
// HandleTradeUpdate can run concurrently against the same position; both
// must hold the pair's lock across their read-check-write sequence.
//
// Locks are never removed from the map. The key space is bounded by
// active user/symbol pairs, which is small next to the rows they guard.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for the pair and returns its unlock func.
func (k *keyedLock) Lock(userID uint, symbol string) func() {
	key := fmt.Sprintf("%d:%s", userID, symbol)

	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
