package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hparsa/relaycast/internal/core/domain"
	"github.com/hparsa/relaycast/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Memory) {
	t.Helper()

	st := store.NewMemory()
	logger := zerolog.Nop()

	return New(st, &logger), st
}

func TestChannelLifecycle(t *testing.T) {
	r, st := newTestRegistry(t)

	ch := r.AddChannel(domain.Channel{Name: "news", Platform: domain.PlatformTelegram, ChatAddress: "@news"})
	require.NotEmpty(t, ch.ID)

	got, ok := r.Channel(ch.ID)
	require.True(t, ok)
	require.Equal(t, "news", got.Name)

	ch.Name = "renamed"
	require.NoError(t, r.UpdateChannel(ch))

	got, _ = r.Channel(ch.ID)
	require.Equal(t, "renamed", got.Name)

	require.NoError(t, r.RemoveChannel(ch.ID))
	require.ErrorIs(t, r.RemoveChannel(ch.ID), ErrChannelNotFound)
	require.ErrorIs(t, r.UpdateChannel(ch), ErrChannelNotFound)

	r.Flush()

	var saved []domain.Channel
	require.NoError(t, st.Get(context.Background(), "channels", &saved))
	require.Empty(t, saved)
}

func TestLoadRestoresCollections(t *testing.T) {
	st := store.NewMemory()
	logger := zerolog.Nop()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "channels", []domain.Channel{{ID: "c1", Name: "a"}}))
	require.NoError(t, st.Set(ctx, "feeds", []domain.Feed{{ID: "f1", URL: "https://example.com/rss"}}))

	r := New(st, &logger)
	r.Load(ctx)

	require.Len(t, r.Channels(), 1)
	require.Len(t, r.Feeds(), 1)
}

func TestAddFeedDefaults(t *testing.T) {
	r, _ := newTestRegistry(t)

	f := r.AddFeed(domain.Feed{URL: "https://example.com/rss", Status: domain.FeedError, ErrorCount: 9})

	require.NotEmpty(t, f.ID)
	require.Equal(t, domain.FeedActive, f.Status)
	require.Zero(t, f.ErrorCount)
}

func TestRecordFeedResultErrorStreak(t *testing.T) {
	r, _ := newTestRegistry(t)

	f := r.AddFeed(domain.Feed{URL: "https://example.com/rss"})
	now := time.Now()
	fetchErr := errors.New("connection refused")

	r.RecordFeedResult(f.ID, fetchErr, now)
	r.RecordFeedResult(f.ID, fetchErr, now)

	got, _ := r.Feed(f.ID)
	require.Equal(t, domain.FeedActive, got.Status)
	require.Equal(t, 2, got.ErrorCount)

	// Third consecutive failure trips the error status.
	r.RecordFeedResult(f.ID, fetchErr, now)

	got, _ = r.Feed(f.ID)
	require.Equal(t, domain.FeedError, got.Status)

	// One success resets the streak.
	r.RecordFeedResult(f.ID, nil, now)

	got, _ = r.Feed(f.ID)
	require.Equal(t, domain.FeedActive, got.Status)
	require.Zero(t, got.ErrorCount)
	require.Equal(t, now, got.LastCheckedAt)
}

func TestRecordFeedResultSkipsInactive(t *testing.T) {
	r, _ := newTestRegistry(t)

	f := r.AddFeed(domain.Feed{URL: "https://example.com/rss"})
	f.Status = domain.FeedInactive
	require.NoError(t, r.UpdateFeed(f))

	r.RecordFeedResult(f.ID, errors.New("down"), time.Now())

	got, _ := r.Feed(f.ID)
	require.Equal(t, domain.FeedInactive, got.Status)
	require.Zero(t, got.ErrorCount)
}

func TestRemoveChannelLeavesRoutingDangling(t *testing.T) {
	r, _ := newTestRegistry(t)

	ch := r.AddChannel(domain.Channel{Name: "doomed", Platform: domain.PlatformTelegram, ChatAddress: "@d"})
	f := r.AddFeed(domain.Feed{URL: "https://example.com/rss", Routing: domain.FeedRouting{General: []string{ch.ID}}})

	require.NoError(t, r.RemoveChannel(ch.ID))

	got, _ := r.Feed(f.ID)
	require.Equal(t, []string{ch.ID}, got.Routing.General)
}
