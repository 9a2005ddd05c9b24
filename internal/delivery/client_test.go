package delivery

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hparsa/relaycast/internal/core/domain"
)

type recordedRequest struct {
	path   string
	form   url.Values
	files  map[string][]byte
	isForm bool
}

type botAPIServer struct {
	*httptest.Server
	requests []recordedRequest
}

// newBotAPIServer records every Bot API call and answers with a success
// envelope of the shape each method expects.
func newBotAPIServer(t *testing.T) *botAPIServer {
	t.Helper()

	s := &botAPIServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{path: r.URL.Path, files: map[string][]byte{}}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)

		if strings.HasPrefix(mediaType, "multipart/") {
			require.NoError(t, r.ParseMultipartForm(32<<20))

			rec.form = r.MultipartForm.Value

			for field, headers := range r.MultipartForm.File {
				f, err := headers[0].Open()
				require.NoError(t, err)

				data, err := io.ReadAll(f)
				require.NoError(t, err)
				require.NoError(t, f.Close())

				rec.files[field] = data
			}
		} else {
			require.NoError(t, r.ParseForm())

			rec.form = r.PostForm
			rec.isForm = true
		}

		s.requests = append(s.requests, rec)

		w.Header().Set("Content-Type", "application/json")

		if strings.HasSuffix(r.URL.Path, "sendMediaGroup") {
			_, _ = w.Write([]byte(`{"ok":true,"result":[{"message_id":1}]}`))

			return
		}

		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))

	t.Cleanup(s.Close)

	return s
}

func newTestClient(t *testing.T, srv *botAPIServer) *Client {
	t.Helper()

	logger := zerolog.Nop()
	c := New(5*time.Second, 1000, &logger)
	c.endpoints[domain.PlatformTelegram] = srv.URL + "/bot%s/%s"
	c.endpoints[domain.PlatformBale] = srv.URL + "/bale/bot%s/%s"

	return c
}

func telegramTarget(chat string) domain.QueueTarget {
	return domain.QueueTarget{Platform: domain.PlatformTelegram, ChatAddress: chat}
}

func TestSendTextToChannelUsername(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	err := c.SendText(context.Background(), telegramTarget("@news"), "tok-123", "hello world")
	require.NoError(t, err)

	require.Len(t, srv.requests, 1)
	req := srv.requests[0]
	require.Equal(t, "/bottok-123/sendMessage", req.path)
	require.Equal(t, "@news", req.form.Get("chat_id"))
	require.Equal(t, "hello world", req.form.Get("text"))
}

func TestSendTextToNumericChat(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	err := c.SendText(context.Background(), telegramTarget("-1001234"), "tok", "hi")
	require.NoError(t, err)

	require.Equal(t, "-1001234", srv.requests[0].form.Get("chat_id"))
}

func TestSendTextBaleEndpoint(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	target := domain.QueueTarget{Platform: domain.PlatformBale, ChatAddress: "5551"}
	require.NoError(t, c.SendText(context.Background(), target, "bale-tok", "hi"))

	require.Equal(t, "/bale/botbale-tok/sendMessage", srv.requests[0].path)
}

func TestSendTextBadChatAddress(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	err := c.SendText(context.Background(), telegramTarget("not-a-chat"), "tok", "hi")
	require.ErrorIs(t, err, ErrBadChatAddress)
	require.Empty(t, srv.requests)
}

func TestSendTextUnknownPlatform(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	target := domain.QueueTarget{Platform: domain.Platform("eitaa"), ChatAddress: "@x"}
	require.ErrorIs(t, c.SendText(context.Background(), target, "tok", "hi"), ErrUnknownPlatform)
}

func TestSendSinglePhotoByURL(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	media := []domain.MediaItem{{URL: "https://example.com/a.jpg", Kind: domain.MediaPhoto}}
	err := c.SendMedia(context.Background(), telegramTarget("@news"), "tok", media, "the caption")
	require.NoError(t, err)

	req := srv.requests[0]
	require.Equal(t, "/bottok/sendPhoto", req.path)
	require.Equal(t, "https://example.com/a.jpg", req.form.Get("photo"))
	require.Equal(t, "the caption", req.form.Get("caption"))
}

func TestSendSingleVideoByURL(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	media := []domain.MediaItem{{URL: "https://example.com/v.mp4", Kind: domain.MediaVideo}}
	require.NoError(t, c.SendMedia(context.Background(), telegramTarget("@news"), "tok", media, ""))

	require.Equal(t, "/bottok/sendVideo", srv.requests[0].path)
	require.Equal(t, "https://example.com/v.mp4", srv.requests[0].form.Get("video"))
}

func TestSendMediaGroupManifest(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	media := []domain.MediaItem{
		{URL: "https://example.com/1.jpg", Kind: domain.MediaPhoto},
		{URL: "https://example.com/2.jpg", Kind: domain.MediaPhoto},
		{URL: "https://example.com/3.mp4", Kind: domain.MediaVideo},
	}

	err := c.SendMedia(context.Background(), telegramTarget("@news"), "tok", media, "album caption")
	require.NoError(t, err)

	req := srv.requests[0]
	require.Equal(t, "/bottok/sendMediaGroup", req.path)
	require.Equal(t, "@news", req.form.Get("chat_id"))

	var manifest []struct {
		Type    string `json:"type"`
		Media   string `json:"media"`
		Caption string `json:"caption,omitempty"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.form.Get("media")), &manifest))
	require.Len(t, manifest, 3)

	require.Equal(t, "photo", manifest[0].Type)
	require.Equal(t, "https://example.com/1.jpg", manifest[0].Media)
	require.Equal(t, "album caption", manifest[0].Caption)

	require.Empty(t, manifest[1].Caption)
	require.Equal(t, "video", manifest[2].Type)
	require.Empty(t, manifest[2].Caption)
}

func TestSendUploadedPhotoBytes(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	// "hi there" base64-encoded, standing in for real image bytes.
	media := []domain.MediaItem{{URL: "data:image/png;base64,aGkgdGhlcmU=", Kind: domain.MediaPhoto}}

	err := c.SendMedia(context.Background(), telegramTarget("@news"), "tok", media, "cap")
	require.NoError(t, err)

	req := srv.requests[0]
	require.Equal(t, "/bottok/sendPhoto", req.path)
	require.Equal(t, []byte("hi there"), req.files["photo"])
}

func TestSendMalformedDataURL(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	tests := []struct {
		name string
		url  string
	}{
		{name: "no payload separator", url: "data:image/png;base64"},
		{name: "not base64 encoded", url: "data:image/png,rawbytes"},
		{name: "invalid base64", url: "data:image/png;base64,!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media := []domain.MediaItem{{URL: tt.url, Kind: domain.MediaPhoto}}
			err := c.SendMedia(context.Background(), telegramTarget("@news"), "tok", media, "")
			require.ErrorIs(t, err, ErrBadDataURL)
		})
	}
}

func TestSendAPIFailureSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked"}`))
	}))
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	c := New(5*time.Second, 1000, &logger)
	c.endpoints[domain.PlatformTelegram] = srv.URL + "/bot%s/%s"

	err := c.SendText(context.Background(), telegramTarget("@news"), "tok", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Forbidden")
}

func TestBotHandleIsCachedPerPlatformToken(t *testing.T) {
	srv := newBotAPIServer(t)
	c := newTestClient(t, srv)

	first, err := c.bot(domain.PlatformTelegram, "tok")
	require.NoError(t, err)

	again, err := c.bot(domain.PlatformTelegram, "tok")
	require.NoError(t, err)
	require.Same(t, first, again)

	other, err := c.bot(domain.PlatformBale, "tok")
	require.NoError(t, err)
	require.NotSame(t, first, other)
}

func TestExtensionFor(t *testing.T) {
	require.Equal(t, ".jpg", extensionFor("image/jpeg"))
	require.Equal(t, ".mp4", extensionFor("video/mp4"))
	require.Equal(t, ".bin", extensionFor("application/octet-stream"))
}
