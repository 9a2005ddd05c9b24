package delivery

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hparsa/relaycast/internal/core/domain"
)

// ErrBadDataURL marks an operator upload whose data: URL cannot be decoded.
var ErrBadDataURL = errors.New("malformed data url")

// mediaFile turns a media item into the request payload the Bot API wants:
// operator uploads arrive as data: URLs and are decoded to inline bytes,
// remote media is passed by URL for the platform to fetch itself.
func mediaFile(item domain.MediaItem) (tgbotapi.RequestFileData, error) {
	if !strings.HasPrefix(item.URL, "data:") {
		return tgbotapi.FileURL(item.URL), nil
	}

	mimeType, payload, err := parseDataURL(item.URL)
	if err != nil {
		return nil, err
	}

	return tgbotapi.FileBytes{
		Name:  "upload" + extensionFor(mimeType),
		Bytes: payload,
	}, nil
}

// parseDataURL splits a data:<mime>;base64,<payload> URL into its MIME type
// and decoded bytes.
func parseDataURL(url string) (string, []byte, error) {
	meta, encoded, found := strings.Cut(strings.TrimPrefix(url, "data:"), ",")
	if !found {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrBadDataURL)
	}

	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 encoding is supported", ErrBadDataURL)
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}

	return mimeType, payload, nil
}

// extensionFor picks a filename extension for an uploaded payload. The Bot
// API infers handling from the request field, so this only has to be
// plausible, not exhaustive.
func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	default:
		return ".bin"
	}
}
