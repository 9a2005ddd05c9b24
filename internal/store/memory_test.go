package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, m.Set(ctx, "a:1", doc{Name: "one", Count: 3}))

	var got doc
	require.NoError(t, m.Get(ctx, "a:1", &got))
	require.Equal(t, doc{Name: "one", Count: 3}, got)
}

func TestMemoryGetMissing(t *testing.T) {
	var out string

	err := NewMemory().Get(context.Background(), "absent", &out)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "feed_seen:a", []string{}))
	require.NoError(t, m.Set(ctx, "feed_seen:b", []string{}))
	require.NoError(t, m.Set(ctx, "settings", map[string]int{}))

	keys, err := m.Keys(ctx, "feed_seen:")
	require.NoError(t, err)
	require.Equal(t, []string{"feed_seen:a", "feed_seen:b"}, keys)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", 1))
	require.NoError(t, m.Delete(ctx, "k"))

	var out int
	require.True(t, errors.Is(m.Get(ctx, "k", &out), ErrNotFound))
}
