package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSetGetDelete(t *testing.T) {
	store := NewMemoryTokenStore(nil, nil)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "test_user")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "test_user", "first", nil))
	require.NoError(t, store.Set(ctx, "test_user", "second", nil))

	token, ok, err := store.Get(ctx, "test_user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", token)

	deleted, err := store.Delete(ctx, "test_user")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "test_user")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTokenLazyExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryTokenStore(clock, nil)
	ctx := context.Background()

	expireAt := clock.Now().Add(time.Minute)
	require.NoError(t, store.Set(ctx, "test_user", "tok", &expireAt))

	clock.Advance(time.Minute)
	token, ok, err := store.Get(ctx, "test_user")
	require.NoError(t, err)
	assert.True(t, ok, "an entry expiring exactly now is still valid")
	assert.Equal(t, "tok", token)

	clock.Advance(time.Second)
	assert.Equal(t, 1, store.Len(), "expiry is lazy")

	_, ok, err = store.Get(ctx, "test_user")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len(), "expired entry purged on read")
}

func TestTokenSetCopiesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryTokenStore(clock, nil)
	ctx := context.Background()

	expireAt := clock.Now().Add(time.Hour)
	require.NoError(t, store.Set(ctx, "test_user", "tok", &expireAt))
	expireAt = clock.Now().Add(-time.Hour)

	_, ok, err := store.Get(ctx, "test_user")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenReset(t *testing.T) {
	store := NewMemoryTokenStore(nil, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1", nil))
	require.NoError(t, store.Set(ctx, "b", "2", nil))
	require.NoError(t, store.Reset(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestTokenEntryValid(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.True(t, TokenEntry{}.Valid(now))
	assert.True(t, TokenEntry{ExpireAt: &future}.Valid(now))
	assert.False(t, TokenEntry{ExpireAt: &past}.Valid(now))
}
