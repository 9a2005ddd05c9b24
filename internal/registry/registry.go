// Package registry owns the operator-configured channel and feed
// collections. Both live in memory in insertion order and are written back
// to the store after every mutation.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hparsa/relaycast/internal/core/domain"
	"github.com/hparsa/relaycast/internal/store"
)

const (
	channelsKey = "channels"
	feedsKey    = "feeds"

	persistTimeout = 5 * time.Second

	// feedErrorThreshold is how many consecutive fetch failures flip a feed
	// to the error status.
	feedErrorThreshold = 3
)

// Registry errors.
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrFeedNotFound    = errors.New("feed not found")
)

// Registry is the authoritative holder of channels and feeds.
type Registry struct {
	mu       sync.RWMutex
	channels []domain.Channel
	feeds    []domain.Feed

	st     store.Store
	logger *zerolog.Logger

	persistWG sync.WaitGroup

	newID func() string
}

// New creates an empty registry backed by st.
func New(st store.Store, logger *zerolog.Logger) *Registry {
	return &Registry{
		st:     st,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Load restores both collections; a missing key just means nothing has been
// configured yet.
func (r *Registry) Load(ctx context.Context) {
	var channels []domain.Channel
	if err := r.st.Get(ctx, channelsKey, &channels); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.logger.Warn().Err(err).Msg("failed to load channels")
	}

	var feeds []domain.Feed
	if err := r.st.Get(ctx, feedsKey, &feeds); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.logger.Warn().Err(err).Msg("failed to load feeds")
	}

	r.mu.Lock()
	r.channels = channels
	r.feeds = feeds
	r.mu.Unlock()
}

// Channels returns a copy of the channel list in insertion order.
func (r *Registry) Channels() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Channel, len(r.channels))
	copy(out, r.channels)

	return out
}

// Channel looks one channel up by id.
func (r *Registry) Channel(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ch := range r.channels {
		if ch.ID == id {
			return ch, true
		}
	}

	return domain.Channel{}, false
}

// AddChannel appends a channel, assigning an id, and returns the stored
// value.
func (r *Registry) AddChannel(ch domain.Channel) domain.Channel {
	ch.ID = r.newID()

	r.mu.Lock()
	r.channels = append(r.channels, ch)
	r.mu.Unlock()

	r.persistChannels()

	return ch
}

// UpdateChannel replaces a channel by id. Queue targets already snapshotted
// from the old value are unaffected.
func (r *Registry) UpdateChannel(ch domain.Channel) error {
	r.mu.Lock()

	idx := -1

	for i := range r.channels {
		if r.channels[i].ID == ch.ID {
			idx = i

			break
		}
	}

	if idx < 0 {
		r.mu.Unlock()

		return ErrChannelNotFound
	}

	r.channels[idx] = ch
	r.mu.Unlock()

	r.persistChannels()

	return nil
}

// RemoveChannel deletes a channel. Feed routing lists keep the dangling id;
// resolution skips it silently.
func (r *Registry) RemoveChannel(id string) error {
	r.mu.Lock()

	idx := -1

	for i := range r.channels {
		if r.channels[i].ID == id {
			idx = i

			break
		}
	}

	if idx < 0 {
		r.mu.Unlock()

		return ErrChannelNotFound
	}

	r.channels = append(r.channels[:idx], r.channels[idx+1:]...)
	r.mu.Unlock()

	r.persistChannels()

	return nil
}

// Feeds returns a copy of the feed list in insertion order.
func (r *Registry) Feeds() []domain.Feed {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Feed, len(r.feeds))
	copy(out, r.feeds)

	return out
}

// Feed looks one feed up by id.
func (r *Registry) Feed(id string) (domain.Feed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.feeds {
		if f.ID == id {
			return f, true
		}
	}

	return domain.Feed{}, false
}

// AddFeed appends a feed, assigning an id and the active status, and returns
// the stored value.
func (r *Registry) AddFeed(f domain.Feed) domain.Feed {
	f.ID = r.newID()
	f.Status = domain.FeedActive
	f.ErrorCount = 0

	r.mu.Lock()
	r.feeds = append(r.feeds, f)
	r.mu.Unlock()

	r.persistFeeds()

	return f
}

// UpdateFeed replaces a feed by id.
func (r *Registry) UpdateFeed(f domain.Feed) error {
	r.mu.Lock()

	idx := r.feedIndex(f.ID)
	if idx < 0 {
		r.mu.Unlock()

		return ErrFeedNotFound
	}

	r.feeds[idx] = f
	r.mu.Unlock()

	r.persistFeeds()

	return nil
}

// RemoveFeed deletes a feed.
func (r *Registry) RemoveFeed(id string) error {
	r.mu.Lock()

	idx := r.feedIndex(id)
	if idx < 0 {
		r.mu.Unlock()

		return ErrFeedNotFound
	}

	r.feeds = append(r.feeds[:idx], r.feeds[idx+1:]...)
	r.mu.Unlock()

	r.persistFeeds()

	return nil
}

// RecordFeedResult notes the outcome of one fetch round: success clears the
// error streak, a failure extends it and flips the feed to error once the
// streak reaches the threshold. Inactive feeds are left untouched.
func (r *Registry) RecordFeedResult(id string, fetchErr error, now time.Time) {
	r.mu.Lock()

	idx := r.feedIndex(id)
	if idx < 0 || r.feeds[idx].Status == domain.FeedInactive {
		r.mu.Unlock()

		return
	}

	r.feeds[idx].LastCheckedAt = now

	if fetchErr == nil {
		r.feeds[idx].ErrorCount = 0
		r.feeds[idx].Status = domain.FeedActive
	} else {
		r.feeds[idx].ErrorCount++

		if r.feeds[idx].ErrorCount >= feedErrorThreshold {
			r.feeds[idx].Status = domain.FeedError
		}
	}

	r.mu.Unlock()

	r.persistFeeds()
}

// feedIndex assumes r.mu is held.
func (r *Registry) feedIndex(id string) int {
	for i := range r.feeds {
		if r.feeds[i].ID == id {
			return i
		}
	}

	return -1
}

func (r *Registry) persistChannels() {
	r.persistAsync(channelsKey, r.Channels())
}

func (r *Registry) persistFeeds() {
	r.persistAsync(feedsKey, r.Feeds())
}

// persistAsync writes one collection back in the background; a failed write
// is logged and the in-memory state stays authoritative.
func (r *Registry) persistAsync(key string, value interface{}) {
	r.persistWG.Add(1)

	go func() {
		defer r.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := r.st.Set(ctx, key, value); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("failed to persist registry")
		}
	}()
}

// Flush waits for pending write-backs; used by tests and shutdown.
func (r *Registry) Flush() {
	r.persistWG.Wait()
}
