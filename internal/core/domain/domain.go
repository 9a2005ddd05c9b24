// Package domain defines the types shared across the relaycast pipeline:
// delivery channels, content feeds, queue items and their resolved targets,
// operator settings and the activity log entry shape.
package domain

import "time"

// Platform identifies a Bot-API-compatible destination platform.
type Platform string

// Supported platforms.
const (
	PlatformTelegram Platform = "telegram"
	PlatformBale     Platform = "bale"
)

// MediaKind is the kind of a single media attachment.
type MediaKind string

// Supported media kinds.
const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// ContentKind classifies a whole post for routing purposes.
type ContentKind string

// Content kinds, decided by the producer before target resolution.
const (
	ContentImage ContentKind = "image"
	ContentVideo ContentKind = "video"
	ContentText  ContentKind = "text"
)

// Channel is a configured delivery destination. Feeds reference channels by
// id; queue targets are snapshotted from channels by value at enqueue time,
// so editing or deleting a channel never touches already-enqueued work.
type Channel struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Platform        Platform `json:"platform"`
	ChatAddress     string   `json:"chat_address"`
	Credential      string   `json:"credential,omitempty"`
	CaptionTemplate string   `json:"caption_template,omitempty"`
}

// FeedStatus is the health state of a content feed.
type FeedStatus string

// Feed statuses.
const (
	FeedActive   FeedStatus = "active"
	FeedError    FeedStatus = "error"
	FeedInactive FeedStatus = "inactive"
)

// FeedRouting maps content kinds to ordered channel id lists. Ids that no
// longer resolve to a channel are skipped silently at resolution time.
type FeedRouting struct {
	General []string `json:"general"`
	Images  []string `json:"images"`
	Videos  []string `json:"videos"`
}

// Feed is an RSS/Atom content source with per-kind routing.
type Feed struct {
	ID            string      `json:"id"`
	URL           string      `json:"url"`
	Name          string      `json:"name"`
	Status        FeedStatus  `json:"status"`
	ErrorCount    int         `json:"error_count"`
	LastCheckedAt time.Time   `json:"last_checked_at"`
	Routing       FeedRouting `json:"routing"`
}

// MediaItem is one attachment of a queue item. URL is either a remote
// http(s) URL or a data: URL carrying operator-uploaded bytes.
type MediaItem struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// QueueTarget is an immutable delivery instruction snapshotted from a
// channel. It is never re-resolved against live channel state.
type QueueTarget struct {
	Platform        Platform `json:"platform"`
	ChatAddress     string   `json:"chat_address"`
	Credential      string   `json:"credential,omitempty"`
	CaptionTemplate string   `json:"caption_template,omitempty"`
}

// QueueStatus is the processing state of a queue item.
type QueueStatus string

// Queue item statuses. Terminal states are never re-entered automatically;
// a failed item only returns to pending through the retry policy while
// attempts remain.
const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
)

// QueueItem is one unit of outbound work.
type QueueItem struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Source     string        `json:"source"`
	Link       string        `json:"link,omitempty"`
	Hashtags   []string      `json:"hashtags,omitempty"`
	AddedAt    time.Time     `json:"added_at"`
	Status     QueueStatus   `json:"status"`
	Media      []MediaItem   `json:"media,omitempty"`
	Targets    []QueueTarget `json:"targets"`
	RetryCount int           `json:"retry_count"`

	// NotBefore delays the next delivery attempt after a retryable failure.
	// Zero means the item is eligible immediately.
	NotBefore time.Time `json:"not_before,omitempty"`
}

// ClassifyContent decides the routing kind of a media list: any video makes
// the post video-kind, otherwise any photo makes it image-kind, otherwise
// it is plain text.
func ClassifyContent(media []MediaItem) ContentKind {
	hasPhoto := false

	for _, m := range media {
		switch m.Kind {
		case MediaVideo:
			return ContentVideo
		case MediaPhoto:
			hasPhoto = true
		}
	}

	if hasPhoto {
		return ContentImage
	}

	return ContentText
}

// AdvancedSettings holds pipeline pacing and retention knobs. Delays are
// milliseconds to match the persisted wire shape; TTL is hours and the feed
// interval is minutes.
type AdvancedSettings struct {
	PostDelayMS             int `json:"post_delay_ms"`
	ChunkDelayMS            int `json:"chunk_delay_ms"`
	MaxRetries              int `json:"max_retries"`
	TTLHours                int `json:"ttl_hours"`
	RSSFetchIntervalMinutes int `json:"rss_fetch_interval_minutes"`
}

// PostDelay is the pause after finishing one item before the next dequeue.
func (a AdvancedSettings) PostDelay() time.Duration {
	return time.Duration(a.PostDelayMS) * time.Millisecond
}

// ChunkDelay is the pause between chunk sends of the same target.
func (a AdvancedSettings) ChunkDelay() time.Duration {
	return time.Duration(a.ChunkDelayMS) * time.Millisecond
}

// TTL is the maximum age of a feed item still worth enqueueing.
func (a AdvancedSettings) TTL() time.Duration {
	return time.Duration(a.TTLHours) * time.Hour
}

// RSSFetchInterval is the pause between feed fetch rounds.
func (a AdvancedSettings) RSSFetchInterval() time.Duration {
	return time.Duration(a.RSSFetchIntervalMinutes) * time.Minute
}

// Settings is the process-wide operator configuration. The queue processor
// always reads the latest in-memory snapshot through the settings manager.
type Settings struct {
	QuietHoursStart     string              `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd       string              `json:"quiet_hours_end,omitempty"`
	SleepMode           bool                `json:"sleep_mode"`
	FallbackCredentials map[Platform]string `json:"fallback_credentials,omitempty"`
	Advanced            AdvancedSettings    `json:"advanced"`
}

// Default pacing values.
const (
	DefaultPostDelayMS     = 5000
	DefaultChunkDelayMS    = 3000
	DefaultMaxRetries      = 3
	DefaultTTLHours        = 24
	DefaultRSSFetchMinutes = 10
)

// DefaultSettings returns the settings used before the operator has saved
// anything.
func DefaultSettings() Settings {
	return Settings{
		FallbackCredentials: map[Platform]string{},
		Advanced: AdvancedSettings{
			PostDelayMS:             DefaultPostDelayMS,
			ChunkDelayMS:            DefaultChunkDelayMS,
			MaxRetries:              DefaultMaxRetries,
			TTLHours:                DefaultTTLHours,
			RSSFetchIntervalMinutes: DefaultRSSFetchMinutes,
		},
	}
}

// LogLevel is the severity of an activity log entry.
type LogLevel string

// Log levels, in increasing severity. SUCCESS sits between INFO and WARN
// and marks completed deliveries.
const (
	LevelInfo    LogLevel = "INFO"
	LevelSuccess LogLevel = "SUCCESS"
	LevelWarn    LogLevel = "WARN"
	LevelError   LogLevel = "ERROR"
)

// LogEntry is one line of the bounded activity log.
type LogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}
