// Package linkfetch builds post previews from arbitrary web links. The
// console's manual-post flow uses it to prefill the title, excerpt and lead
// image before the operator enqueues.
package linkfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
)

const (
	headerUserAgent  = "User-Agent"
	defaultUserAgent = "relaycast/1.0 (+https://github.com/hparsa/relaycast)"

	// maxBodyBytes bounds how much of a page is read before extraction.
	maxBodyBytes = 4 << 20

	maxExcerptRunes = 300
)

var errPageStatus = errors.New("page returned non-OK status")

// Preview is the extract of one web page.
type Preview struct {
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	SiteName string `json:"site_name,omitempty"`
}

// Fetcher downloads pages and extracts readable previews.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *zerolog.Logger
}

// New creates a fetcher. An empty userAgent falls back to the default.
func New(timeout time.Duration, userAgent string, logger *zerolog.Logger) *Fetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Fetch downloads rawURL and extracts a preview with the Firefox Reader Mode
// algorithm.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Preview, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Preview{}, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Preview{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(headerUserAgent, f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Preview{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Preview{}, fmt.Errorf("%w: %d", errPageStatus, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)

	article, err := readability.FromReader(body, parsed)
	if err != nil {
		return Preview{}, fmt.Errorf("readability extraction: %w", err)
	}

	return Preview{
		Title:    strings.TrimSpace(article.Title),
		Excerpt:  truncate(strings.TrimSpace(article.Excerpt), maxExcerptRunes),
		ImageURL: article.Image,
		SiteName: article.SiteName,
	}, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)

	return string(runes[:max]) + "..."
}
