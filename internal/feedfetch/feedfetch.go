// Package feedfetch polls the configured RSS/Atom feeds and turns fresh
// items into queue entries. It is one of the pipeline's producers: it
// classifies content, resolves targets and enqueues, but never touches
// delivery.
package feedfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/hparsa/relaycast/internal/core/domain"
	"github.com/hparsa/relaycast/internal/platform/observability"
	"github.com/hparsa/relaycast/internal/queue"
	"github.com/hparsa/relaycast/internal/registry"
	"github.com/hparsa/relaycast/internal/settings"
	"github.com/hparsa/relaycast/internal/store"
)

const (
	headerUserAgent  = "User-Agent"
	defaultUserAgent = "relaycast/1.0 (+https://github.com/hparsa/relaycast)"

	seenKeyPrefix = "feed_seen:"
	// seenCap bounds the per-feed GUID memory; the oldest entries roll off.
	seenCap = 500
)

var errFeedStatus = errors.New("feed returned non-OK status")

// Journal receives operator-visible fetch outcomes.
type Journal interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Fetcher polls feeds and enqueues new items.
type Fetcher struct {
	reg      *registry.Registry
	manager  *queue.Manager
	settings *settings.Manager
	st       store.Store
	journal  Journal
	logger   *zerolog.Logger

	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string

	// lastRound is touched only by the feed worker goroutine.
	lastRound time.Time

	now func() time.Time
}

// New creates a fetcher. An empty userAgent falls back to the default.
func New(
	reg *registry.Registry,
	manager *queue.Manager,
	sett *settings.Manager,
	st store.Store,
	journal Journal,
	timeout time.Duration,
	userAgent string,
	logger *zerolog.Logger,
) *Fetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Fetcher{
		reg:        reg,
		manager:    manager,
		settings:   sett,
		st:         st,
		journal:    journal,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		now:        time.Now,
	}
}

// RunIfDue runs a fetch round when the operator-configured interval has
// elapsed since the last one. The worker calls this on a short cadence so
// interval changes take effect without a restart. Not safe for concurrent
// callers; the single feed worker goroutine is the only one.
func (f *Fetcher) RunIfDue(ctx context.Context) {
	interval := f.settings.Snapshot().Advanced.RSSFetchInterval()

	if !f.lastRound.IsZero() && f.now().Sub(f.lastRound) < interval {
		return
	}

	f.lastRound = f.now()
	f.RunOnce(ctx)
}

// RunOnce polls every non-inactive feed in order. Per-feed failures are
// recorded against the feed and never abort the round.
func (f *Fetcher) RunOnce(ctx context.Context) {
	for _, feed := range f.reg.Feeds() {
		if feed.Status == domain.FeedInactive {
			continue
		}

		if err := f.fetchOne(ctx, feed); err != nil {
			f.reg.RecordFeedResult(feed.ID, err, f.now())
			observability.FeedFetches.WithLabelValues("error").Inc()

			f.journal.Errorf("feed %q fetch failed: %v", feed.Name, err)
			f.logger.Warn().Err(err).Str("feed", feed.URL).Msg("feed fetch failed")

			continue
		}

		f.reg.RecordFeedResult(feed.ID, nil, f.now())
		observability.FeedFetches.WithLabelValues("success").Inc()
	}
}

func (f *Fetcher) fetchOne(ctx context.Context, feed domain.Feed) error {
	parsed, err := f.fetchFeed(ctx, feed.URL)
	if err != nil {
		return err
	}

	seen := f.loadSeen(ctx, feed.ID)
	ttl := f.settings.Snapshot().Advanced.TTL()
	now := f.now()

	enqueued := 0
	newGUIDs := make([]string, 0, len(parsed.Items))

	// Feeds list newest first; walk backwards so items enqueue oldest first.
	for i := len(parsed.Items) - 1; i >= 0; i-- {
		item := parsed.Items[i]

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}

		if guid == "" || seen[guid] {
			continue
		}

		newGUIDs = append(newGUIDs, guid)

		if age := now.Sub(publishedAt(item, now)); age > ttl {
			continue
		}

		if f.enqueue(feed, item, now) {
			enqueued++
		}
	}

	if len(newGUIDs) > 0 {
		f.storeSeen(ctx, feed.ID, seen, newGUIDs)
	}

	if enqueued > 0 {
		f.journal.Infof("feed %q: queued %d new item(s)", feed.Name, enqueued)
	}

	return nil
}

// enqueue resolves targets for one feed item and adds it to the queue.
// Returns false when nothing is enqueued, including the no-targets case.
func (f *Fetcher) enqueue(feed domain.Feed, item *gofeed.Item, now time.Time) bool {
	media := extractMedia(item)
	kind := domain.ClassifyContent(media)

	targets := queue.Resolve(kind, feed.Routing, f.reg.Channels())
	if len(targets) == 0 {
		f.journal.Warnf("feed %q: no targets for %s item %q, skipped", feed.Name, kind, item.Title)

		return false
	}

	f.manager.Enqueue(domain.QueueItem{
		Title:    item.Title,
		Source:   feed.Name,
		Link:     item.Link,
		Hashtags: hashtags(item.Categories),
		Media:    media,
		Targets:  targets,
	})

	return true
}

// fetchFeed fetches and parses an RSS/Atom feed.
func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}

	req.Header.Set(headerUserAgent, f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errFeedStatus, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return parsed, nil
}

func (f *Fetcher) loadSeen(ctx context.Context, feedID string) map[string]bool {
	var guids []string
	if err := f.st.Get(ctx, seenKeyPrefix+feedID, &guids); err != nil && !errors.Is(err, store.ErrNotFound) {
		f.logger.Warn().Err(err).Str("feed_id", feedID).Msg("failed to load seen set")
	}

	seen := make(map[string]bool, len(guids))
	for _, g := range guids {
		seen[g] = true
	}

	return seen
}

func (f *Fetcher) storeSeen(ctx context.Context, feedID string, seen map[string]bool, newGUIDs []string) {
	merged := make([]string, 0, len(seen)+len(newGUIDs))
	for g := range seen {
		merged = append(merged, g)
	}

	merged = append(merged, newGUIDs...)

	if len(merged) > seenCap {
		merged = merged[len(merged)-seenCap:]
	}

	if err := f.st.Set(ctx, seenKeyPrefix+feedID, merged); err != nil {
		f.logger.Warn().Err(err).Str("feed_id", feedID).Msg("failed to persist seen set")
	}
}

// publishedAt picks the item timestamp: the parsed published time, then the
// parsed update time, then a best-effort parse of the raw string. An item
// with no usable timestamp counts as fresh.
func publishedAt(item *gofeed.Item, now time.Time) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}

	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}

	if item.Published != "" {
		if t, err := dateparse.ParseAny(item.Published); err == nil {
			return t
		}
	}

	return now
}

// extractMedia collects the item's media attachments: typed enclosures
// first, the feed-level item image as a fallback when there are none.
func extractMedia(item *gofeed.Item) []domain.MediaItem {
	var media []domain.MediaItem

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}

		switch {
		case strings.HasPrefix(enc.Type, "image/"):
			media = append(media, domain.MediaItem{URL: enc.URL, Kind: domain.MediaPhoto})
		case strings.HasPrefix(enc.Type, "video/"):
			media = append(media, domain.MediaItem{URL: enc.URL, Kind: domain.MediaVideo})
		}
	}

	if len(media) == 0 && item.Image != nil && item.Image.URL != "" {
		media = append(media, domain.MediaItem{URL: item.Image.URL, Kind: domain.MediaPhoto})
	}

	return media
}

// hashtags turns feed categories into caption hashtags, collapsing
// whitespace so each tag stays a single token.
func hashtags(categories []string) []string {
	var tags []string

	for _, c := range categories {
		c = strings.Join(strings.Fields(c), "")
		if c == "" {
			continue
		}

		tags = append(tags, "#"+c)
	}

	return tags
}
