package epicgame

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ReleaseFunc releases an acquired action lock.
type ReleaseFunc func(ctx context.Context) error

// Locker grants at most one holder per key. Acquire never waits: a held key
// fails with ErrActionInProgress.
type Locker interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// MemoryLocker is an in-process Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]string // key -> holder token
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]string{}}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrActionInProgress
	}
	token := uuid.NewString()
	l.held[key] = token

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] != token {
			return ErrLockNotHeld
		}
		delete(l.held, key)
		return nil
	}, nil
}
