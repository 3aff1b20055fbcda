// Package lock serializes ingestion cycles per workspace.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotAcquired is returned when the lock could not be taken before ctx ended.
var ErrNotAcquired = errors.New("workspace lock not acquired")

// Locker hands out one holder per workspace at a time. Lock blocks until the
// lock is free or ctx is done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, workspaceID int64) (unlock func(), err error)
}

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func NewLocal() *Local {
	return &Local{slots: make(map[int64]chan struct{})}
}

func (l *Local) Lock(ctx context.Context, workspaceID int64) (func(), error) {
	slot := l.slot(workspaceID)
	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: workspace %d: %w", ErrNotAcquired, workspaceID, ctx.Err())
	}
}

func (l *Local) slot(workspaceID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[workspaceID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[workspaceID] = ch
	}
	return ch
}
