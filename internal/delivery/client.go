// Package delivery sends queue content to Bot-API-compatible platforms. One
// client serves every platform and credential; bot handles are cached per
// platform/token pair and all calls share a single pacing limiter.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hparsa/relaycast/internal/core/domain"
	"github.com/hparsa/relaycast/internal/platform/observability"
)

const botBuffer = 100

// Client errors.
var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrBadChatAddress  = errors.New("chat address is neither numeric nor an @username")
	ErrEmptyChunk      = errors.New("empty media chunk")
)

// defaultEndpoints maps each platform to its Bot API URL template. Bale
// speaks the same protocol as Telegram behind its own host.
func defaultEndpoints() map[domain.Platform]string {
	return map[domain.Platform]string{
		domain.PlatformTelegram: tgbotapi.APIEndpoint,
		domain.PlatformBale:     "https://tapi.bale.ai/bot%s/%s",
	}
}

// Client is a multi-platform Bot API sender.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zerolog.Logger
	endpoints  map[domain.Platform]string

	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
}

// New creates a client. Every outgoing call shares one rate limiter at rps
// requests per second and the transport timeout bounds each call.
func New(timeout time.Duration, rps float64, logger *zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		endpoints:  defaultEndpoints(),
		bots:       map[string]*tgbotapi.BotAPI{},
	}
}

// bot returns the cached API handle for a platform/token pair. Handles are
// built directly rather than through tgbotapi.NewBotAPI: that constructor
// calls getMe eagerly, and a dead token must fail the one item using it, not
// client construction.
func (c *Client) bot(platform domain.Platform, token string) (*tgbotapi.BotAPI, error) {
	endpoint, ok := c.endpoints[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}

	key := string(platform) + ":" + token

	c.mu.Lock()
	defer c.mu.Unlock()

	if bot, ok := c.bots[key]; ok {
		return bot, nil
	}

	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: c.httpClient,
		Buffer: botBuffer,
	}
	bot.SetAPIEndpoint(endpoint)

	c.bots[key] = bot

	return bot, nil
}

// SendText delivers a plain text message to the target.
func (c *Client) SendText(ctx context.Context, target domain.QueueTarget, credential, text string) error {
	bot, err := c.bot(target.Platform, credential)
	if err != nil {
		return err
	}

	chat, err := parseChatAddress(target.ChatAddress)
	if err != nil {
		return err
	}

	msg := tgbotapi.MessageConfig{
		BaseChat: chat,
		Text:     text,
	}

	return c.send(ctx, target.Platform, func() error {
		_, err := bot.Send(msg)

		return err
	})
}

// SendMedia delivers one media chunk. A single item goes out as a plain
// photo/video message; multiple items go out as one media group with the
// caption on the group's first entry.
func (c *Client) SendMedia(ctx context.Context, target domain.QueueTarget, credential string, media []domain.MediaItem, caption string) error {
	if len(media) == 0 {
		return ErrEmptyChunk
	}

	bot, err := c.bot(target.Platform, credential)
	if err != nil {
		return err
	}

	chat, err := parseChatAddress(target.ChatAddress)
	if err != nil {
		return err
	}

	if len(media) == 1 {
		msg, err := singleMediaConfig(chat, media[0], caption)
		if err != nil {
			return err
		}

		return c.send(ctx, target.Platform, func() error {
			_, err := bot.Send(msg)

			return err
		})
	}

	group, err := mediaGroupConfig(chat, media, caption)
	if err != nil {
		return err
	}

	return c.send(ctx, target.Platform, func() error {
		_, err := bot.SendMediaGroup(group)

		return err
	})
}

// send paces and times one Bot API call.
func (c *Client) send(ctx context.Context, platform domain.Platform, call func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	err := call()
	observability.DeliveryDuration.WithLabelValues(string(platform)).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Debug().Err(err).Str("platform", string(platform)).Msg("bot api call failed")

		return fmt.Errorf("bot api call: %w", err)
	}

	return nil
}

// parseChatAddress understands the two Bot API addressing forms: a numeric
// chat id or an @-prefixed public username.
func parseChatAddress(address string) (tgbotapi.BaseChat, error) {
	if strings.HasPrefix(address, "@") {
		return tgbotapi.BaseChat{ChannelUsername: address}, nil
	}

	id, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return tgbotapi.BaseChat{}, fmt.Errorf("%w: %q", ErrBadChatAddress, address)
	}

	return tgbotapi.BaseChat{ChatID: id}, nil
}

func singleMediaConfig(chat tgbotapi.BaseChat, item domain.MediaItem, caption string) (tgbotapi.Chattable, error) {
	file, err := mediaFile(item)
	if err != nil {
		return nil, err
	}

	base := tgbotapi.BaseFile{BaseChat: chat, File: file}

	switch item.Kind {
	case domain.MediaVideo:
		return tgbotapi.VideoConfig{BaseFile: base, Caption: caption}, nil
	case domain.MediaPhoto:
		return tgbotapi.PhotoConfig{BaseFile: base, Caption: caption}, nil
	default:
		return tgbotapi.PhotoConfig{BaseFile: base, Caption: caption}, nil
	}
}

func mediaGroupConfig(chat tgbotapi.BaseChat, media []domain.MediaItem, caption string) (tgbotapi.MediaGroupConfig, error) {
	entries := make([]interface{}, 0, len(media))

	for i, item := range media {
		file, err := mediaFile(item)
		if err != nil {
			return tgbotapi.MediaGroupConfig{}, err
		}

		entryCaption := ""
		if i == 0 {
			entryCaption = caption
		}

		switch item.Kind {
		case domain.MediaVideo:
			entry := tgbotapi.NewInputMediaVideo(file)
			entry.Caption = entryCaption
			entries = append(entries, entry)
		default:
			entry := tgbotapi.NewInputMediaPhoto(file)
			entry.Caption = entryCaption
			entries = append(entries, entry)
		}
	}

	return tgbotapi.MediaGroupConfig{
		ChatID:          chat.ChatID,
		ChannelUsername: chat.ChannelUsername,
		Media:           entries,
	}, nil
}
