package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	seen, err := s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Mark(ctx, "evt_1"))
	seen, err = s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, err = s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "expired keys are forgotten")
}

func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func TestMemoryStore_MarkSweepsExpiredKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for _, k := range []string{"evt_a", "evt_b", "evt_c"} {
		require.NoError(t, s.Mark(ctx, k))
	}
	assert.Equal(t, 3, s.size())

	// Nobody asks about the old keys again.
	now = now.Add(5 * time.Minute)
	require.NoError(t, s.Mark(ctx, "evt_d"))
	assert.Equal(t, 1, s.size())

	seen, err := s.Seen(ctx, "evt_d")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SHOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHOP_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	rdb, err := Connect(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, time.Minute)
	key := uuid.NewString()

	seen, err := s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Mark(ctx, key))
	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := Connect(ctx, "127.0.0.1:1", "", 0)
	require.Error(t, err)
}
