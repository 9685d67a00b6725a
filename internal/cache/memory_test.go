package cache

import (
	"context"
	"testing"
	"time"

	"github.com/bilgisen/newskit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMarksAndClears(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("seen:")

	seen, err := store.IsSeen(ctx, "s1:abc")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.MarkSeen(ctx, "s1:abc", time.Hour))
	require.NoError(t, store.MarkSeen(ctx, "s2:abc", time.Hour))

	seen, err = store.IsSeen(ctx, "s1:abc")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, store.ClearSeen(ctx, "s1:"))

	seen, _ = store.IsSeen(ctx, "s1:abc")
	assert.False(t, seen, "cleared scope should be forgotten")
	seen, _ = store.IsSeen(ctx, "s2:abc")
	assert.True(t, seen, "other scopes are untouched")
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.MarkSeen(ctx, "k", time.Minute))
	require.NoError(t, store.MarkSeen(ctx, "forever", 0))

	now = now.Add(2 * time.Minute)

	seen, err := store.IsSeen(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.IsSeen(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStoreHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore("").IsSeen(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDefaultsToMemory(t *testing.T) {
	store, err := New(&config.Config{RedisPrefix: "p:"})
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}
