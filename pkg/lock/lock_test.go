package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_TryLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	key := GenerationKey(uuid.New(), "2024-03")

	release, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	held, err := l.Held(ctx, key)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, release(ctx))
	held, _ = l.Held(ctx, key)
	assert.False(t, held)

	release, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestLocalLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	stale, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	held, _ := l.Held(ctx, "k")
	assert.False(t, held)

	fresh, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	// 过期持有者的释放不影响新持有者
	require.NoError(t, stale(ctx))
	held, _ = l.Held(ctx, "k")
	assert.True(t, held)
	require.NoError(t, fresh(ctx))
}

func TestLocalLocker_Concurrent(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	var won int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.TryLock(ctx, "same", time.Minute); err == nil {
				atomic.AddInt32(&won, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won)
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	release, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		release(ctx)
	}()

	got, err := Acquire(ctx, l, "k", time.Minute, time.Second)
	require.NoError(t, err)
	require.NoError(t, got(ctx))
}

func TestAcquire_GivesUp(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	_, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = Acquire(ctx, l, "k", time.Minute, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestKeys(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "nurseshift:generate:11111111-1111-1111-1111-111111111111:2024-03", GenerationKey(id, "2024-03"))
	assert.Equal(t, "nurseshift:roster:11111111-1111-1111-1111-111111111111", RosterKey(id))
}
