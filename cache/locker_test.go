package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, l Locker) {
	ctx := context.Background()
	key := uuid.NewString()

	release, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	release()
	again, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryLocker(t *testing.T) {
	exerciseLocker(t, NewMemoryLocker())
}

func TestMemoryLockerExpires(t *testing.T) {
	l := NewMemoryLocker()
	_, err := l.Acquire(context.Background(), "file", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = l.Acquire(context.Background(), "file", time.Minute)
	assert.NoError(t, err)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := ConnectRedis(context.Background(), addr, os.Getenv("REDIS_PASSWORD"))
	require.NoError(t, err)
	defer client.Close()

	exerciseLocker(t, NewRedisLocker(client))
}
