package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameWorkspace(t *testing.T) {
	l := NewLocal()

	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(context.Background(), 1)
		if err == nil {
			close(acquired)
			second()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder got the lock while the first still holds it")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never got the lock")
	}
}

func TestLocalWorkspacesAreIndependent(t *testing.T) {
	l := NewLocal()
	unlockA, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, 2)
	require.NoError(t, err)
	unlockB()
}

func TestLocalRespectsContext(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), 7)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 7)
	require.ErrorIs(t, err, ErrNotAcquired)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLocalUnlockIsIdempotent(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), 3)
	require.NoError(t, err)
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	again, err := l.Lock(ctx, 3)
	require.NoError(t, err)
	again()
}

func TestRedisKey(t *testing.T) {
	r := NewRedis(nil, 0, nil)
	require.Equal(t, "newsqueue:lock:workspace:42", r.key(42))
	require.Equal(t, DefaultLockTTL, r.ttl)
}
