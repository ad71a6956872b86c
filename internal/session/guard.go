package session

import (
	"fmt"
	"sync"
)

// guard is a mutex that poisons itself when a panic escapes a critical section.
// Once poisoned, every acquisition fails with LockAcquisitionFailure instead of
// exposing state a panic may have left half-written.
type guard struct {
	name     string
	mu       sync.Mutex
	poisoned bool
}

// do runs fn while holding the lock. fn must not block on I/O.
func (g *guard) do(op string, fn func() error) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.poisoned {
		return &Error{Kind: KindLockAcquisition, Op: op, Detail: g.name + " lock poisoned"}
	}

	defer func() {
		if r := recover(); r != nil {
			g.poisoned = true
			err = &Error{Kind: KindLockAcquisition, Op: op, Detail: g.name, Err: fmt.Errorf("panic in critical section: %v", r)}
		}
	}()

	return fn()
}
