package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hparsa/relaycast/internal/core/domain"
	"github.com/hparsa/relaycast/internal/platform/observability"
	"github.com/hparsa/relaycast/internal/settings"
)

// Sender delivers rendered content to one destination. Implemented by the
// delivery client; tests substitute a recorder.
type Sender interface {
	SendText(ctx context.Context, target domain.QueueTarget, credential, text string) error
	SendMedia(ctx context.Context, target domain.QueueTarget, credential string, media []domain.MediaItem, caption string) error
}

// ChannelLister exposes the live channel list, consulted for caption
// templates at processing time.
type ChannelLister interface {
	Channels() []domain.Channel
}

// Journal receives operator-visible pipeline outcomes.
type Journal interface {
	Infof(format string, args ...interface{})
	Successf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Target skip reasons, also used as metric labels.
const (
	skipNoCredential = "no_credential"
	skipNoAddress    = "no_chat_address"
)

// Processor drains the queue one item per tick. At most one item is in
// flight at any moment; overlapping ticks are rejected, not queued.
type Processor struct {
	manager  *Manager
	settings *settings.Manager
	sender   Sender
	channels ChannelLister
	journal  Journal
	logger   *zerolog.Logger

	busy atomic.Bool

	// nextDequeueAt enforces the post delay between items. Only the
	// goroutine holding busy touches it.
	nextDequeueAt time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewProcessor wires the tick state machine.
func NewProcessor(
	manager *Manager,
	sett *settings.Manager,
	sender Sender,
	channels ChannelLister,
	journal Journal,
	logger *zerolog.Logger,
) *Processor {
	return &Processor{
		manager:  manager,
		settings: sett,
		sender:   sender,
		channels: channels,
		journal:  journal,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Tick runs one step of the dequeue state machine. It returns immediately
// when another tick is still processing, when deliveries are paused, when
// the post delay has not elapsed, or when nothing is eligible.
func (p *Processor) Tick(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		return
	}
	defer p.busy.Store(false)

	observability.QueueDepth.Set(float64(p.manager.PendingCount()))

	s := p.settings.Snapshot()

	if s.SleepMode {
		return
	}

	now := p.now()

	if p.settings.QuietWindow().Contains(now) {
		return
	}

	if now.Before(p.nextDequeueAt) {
		return
	}

	item, ok := p.manager.claimNext(now)
	if !ok {
		return
	}

	p.journal.Infof("processing %q (%d media, %d targets)", item.Title, len(item.Media), len(item.Targets))

	p.process(ctx, item, s)

	p.nextDequeueAt = p.now().Add(s.Advanced.PostDelay())
	observability.QueueDepth.Set(float64(p.manager.PendingCount()))
}

// process delivers one claimed item to all of its targets. Any send error
// fails the whole item; targets already delivered in this attempt stay
// delivered and are named in the failure log line.
func (p *Processor) process(ctx context.Context, item domain.QueueItem, s domain.Settings) {
	channels := p.channels.Channels()
	chunks := Chunk(item.Media, DefaultMaxChunks, DefaultMaxPerChunk)

	delivered := 0
	skipped := 0

	for _, target := range item.Targets {
		credential := target.Credential
		if credential == "" {
			credential = p.settings.FallbackCredential(target.Platform)
		}

		if reason, ok := p.skipReason(target, credential); !ok {
			p.journal.Warnf("skipping %s/%s for %q: %s", target.Platform, target.ChatAddress, item.Title, reason)
			observability.TargetsSkipped.WithLabelValues(reason).Inc()

			skipped++

			continue
		}

		caption := Render(TemplateFor(target, channels), CaptionContext{
			Title:    item.Title,
			Link:     item.Link,
			Source:   item.Source,
			Date:     p.now(),
			Hashtags: item.Hashtags,
		})

		if err := p.deliver(ctx, target, credential, chunks, caption, s.Advanced.ChunkDelay()); err != nil {
			p.logger.Error().Err(err).
				Str("item_id", item.ID).
				Str("platform", string(target.Platform)).
				Str("chat", target.ChatAddress).
				Msg("delivery failed")

			p.fail(item, target, err, delivered, s.Advanced)

			return
		}

		delivered++
	}

	p.manager.markCompleted(item.ID)
	observability.ItemsProcessed.WithLabelValues(string(domain.StatusCompleted)).Inc()

	if delivered == 0 && skipped > 0 {
		p.journal.Warnf("%q completed without delivery: all %d targets skipped", item.Title, skipped)

		return
	}

	p.journal.Successf("delivered %q to %d target(s)", item.Title, delivered)
}

func (p *Processor) skipReason(target domain.QueueTarget, credential string) (string, bool) {
	if target.ChatAddress == "" {
		return skipNoAddress, false
	}

	if credential == "" {
		return skipNoCredential, false
	}

	return "", true
}

// deliver sends one target's content: a single text message when the item
// has no media, otherwise the chunk sequence with the caption on the first
// chunk only and the chunk delay between consecutive sends.
func (p *Processor) deliver(
	ctx context.Context,
	target domain.QueueTarget,
	credential string,
	chunks [][]domain.MediaItem,
	caption string,
	chunkDelay time.Duration,
) error {
	if len(chunks) == 0 {
		if err := p.sender.SendText(ctx, target, credential, caption); err != nil {
			return fmt.Errorf("send text: %w", err)
		}

		observability.ChunksSent.WithLabelValues(string(target.Platform)).Inc()

		return nil
	}

	for i, chunk := range chunks {
		if i > 0 {
			if err := p.sleep(ctx, chunkDelay); err != nil {
				return fmt.Errorf("chunk delay: %w", err)
			}
		}

		chunkCaption := ""
		if i == 0 {
			chunkCaption = caption
		}

		if err := p.sender.SendMedia(ctx, target, credential, chunk, chunkCaption); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}

		observability.ChunksSent.WithLabelValues(string(target.Platform)).Inc()
	}

	return nil
}

// fail applies the retry policy after a send error. While attempts remain
// the item returns to pending with an exponential backoff deadline; after
// that it is failed for good and only the operator can re-enqueue it.
func (p *Processor) fail(item domain.QueueItem, target domain.QueueTarget, err error, delivered int, adv domain.AdvancedSettings) {
	prior := ""
	if delivered > 0 {
		prior = fmt.Sprintf(" (%d target(s) already delivered)", delivered)
	}

	if item.RetryCount < adv.MaxRetries {
		backoff := adv.PostDelay() * (1 << item.RetryCount)
		notBefore := p.now().Add(backoff)

		p.manager.requeueForRetry(item.ID, notBefore)
		p.journal.Errorf("delivery of %q to %s/%s failed: %v%s; retry %d/%d in %s",
			item.Title, target.Platform, target.ChatAddress, err, prior, item.RetryCount+1, adv.MaxRetries, backoff)

		return
	}

	p.manager.markFailed(item.ID)
	observability.ItemsProcessed.WithLabelValues(string(domain.StatusFailed)).Inc()
	p.journal.Errorf("delivery of %q to %s/%s failed permanently after %d retries: %v%s",
		item.Title, target.Platform, target.ChatAddress, adv.MaxRetries, err, prior)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
