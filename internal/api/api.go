// Package api serves the operator console's REST surface: channel and feed
// management, the queue with manual posting, the activity log and settings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hparsa/relaycast/internal/core/domain"
	"github.com/hparsa/relaycast/internal/journal"
	"github.com/hparsa/relaycast/internal/linkfetch"
	"github.com/hparsa/relaycast/internal/queue"
	"github.com/hparsa/relaycast/internal/registry"
	"github.com/hparsa/relaycast/internal/settings"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxBodyBytes      = 16 << 20
)

// LinkPreviewer builds a post preview from a web link.
type LinkPreviewer interface {
	Fetch(ctx context.Context, rawURL string) (linkfetch.Preview, error)
}

// Server is the operator console backend.
type Server struct {
	reg     *registry.Registry
	manager *queue.Manager
	sett    *settings.Manager
	journal *journal.Journal
	preview LinkPreviewer
	port    int
	logger  *zerolog.Logger
}

// NewServer wires the REST surface.
func NewServer(
	reg *registry.Registry,
	manager *queue.Manager,
	sett *settings.Manager,
	j *journal.Journal,
	preview LinkPreviewer,
	port int,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		reg:     reg,
		manager: manager,
		sett:    sett,
		journal: j,
		preview: preview,
		port:    port,
		logger:  logger,
	}
}

// Router builds the chi router; split from Start so tests can drive the
// handlers without a listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/channels", s.listChannels)
		r.Post("/channels", s.createChannel)
		r.Put("/channels/{id}", s.updateChannel)
		r.Delete("/channels/{id}", s.deleteChannel)

		r.Get("/feeds", s.listFeeds)
		r.Post("/feeds", s.createFeed)
		r.Put("/feeds/{id}", s.updateFeed)
		r.Delete("/feeds/{id}", s.deleteFeed)

		r.Get("/queue", s.listQueue)
		r.Post("/queue", s.createQueueItem)
		r.Delete("/queue/{id}", s.deleteQueueItem)
		r.Post("/queue/{id}/retry", s.retryQueueItem)

		r.Get("/logs", s.listLogs)

		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
		r.Post("/sleep", s.setSleep)

		r.Post("/preview", s.previewLink)
	})

	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("api server shutdown failed")
		}
	}()

	s.logger.Info().Int("port", s.port).Msg("api server listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}

	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("api request")
	})
}

// --- channels ---

func (s *Server) listChannels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Channels())
}

func (s *Server) createChannel(w http.ResponseWriter, r *http.Request) {
	var ch domain.Channel
	if !decodeBody(w, r, &ch) {
		return
	}

	if ch.Name == "" || ch.ChatAddress == "" || !validPlatform(ch.Platform) {
		writeError(w, http.StatusUnprocessableEntity, "name, chat_address and a known platform are required")

		return
	}

	writeJSON(w, http.StatusCreated, s.reg.AddChannel(ch))
}

func (s *Server) updateChannel(w http.ResponseWriter, r *http.Request) {
	var ch domain.Channel
	if !decodeBody(w, r, &ch) {
		return
	}

	ch.ID = chi.URLParam(r, "id")

	if err := s.reg.UpdateChannel(ch); err != nil {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) deleteChannel(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.RemoveChannel(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- feeds ---

func (s *Server) listFeeds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Feeds())
}

func (s *Server) createFeed(w http.ResponseWriter, r *http.Request) {
	var f domain.Feed
	if !decodeBody(w, r, &f) {
		return
	}

	if f.URL == "" || f.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "url and name are required")

		return
	}

	writeJSON(w, http.StatusCreated, s.reg.AddFeed(f))
}

func (s *Server) updateFeed(w http.ResponseWriter, r *http.Request) {
	var f domain.Feed
	if !decodeBody(w, r, &f) {
		return
	}

	f.ID = chi.URLParam(r, "id")

	if err := s.reg.UpdateFeed(f); err != nil {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, f)
}

func (s *Server) deleteFeed(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.RemoveFeed(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- queue ---

type manualPostRequest struct {
	Title      string             `json:"title"`
	Link       string             `json:"link,omitempty"`
	Hashtags   []string           `json:"hashtags,omitempty"`
	Media      []domain.MediaItem `json:"media,omitempty"`
	ChannelIDs []string           `json:"channel_ids"`
}

func (s *Server) listQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Items())
}

func (s *Server) createQueueItem(w http.ResponseWriter, r *http.Request) {
	var req manualPostRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Title == "" {
		writeError(w, http.StatusUnprocessableEntity, "title is required")

		return
	}

	// A manual post routes every content kind to the chosen channels.
	kind := domain.ClassifyContent(req.Media)
	routing := domain.FeedRouting{General: req.ChannelIDs}

	targets := queue.Resolve(kind, routing, s.reg.Channels())
	if len(targets) == 0 {
		s.journal.Warnf("manual post %q: no targets resolved, not enqueued", req.Title)
		writeError(w, http.StatusUnprocessableEntity, "no deliverable channels selected")

		return
	}

	item := s.manager.Enqueue(domain.QueueItem{
		Title:    req.Title,
		Source:   "manual",
		Link:     req.Link,
		Hashtags: req.Hashtags,
		Media:    req.Media,
		Targets:  targets,
	})

	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) deleteQueueItem(w http.ResponseWriter, r *http.Request) {
	err := s.manager.Remove(chi.URLParam(r, "id"))

	switch {
	case errors.Is(err, queue.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrItemProcessing):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) retryQueueItem(w http.ResponseWriter, r *http.Request) {
	err := s.manager.ResetForRetry(chi.URLParam(r, "id"))

	switch {
	case errors.Is(err, queue.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrItemNotFailed):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- logs ---

func (s *Server) listLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.journal.Snapshot())
}

// --- settings ---

type sleepRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sett.Snapshot())
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var cfg domain.Settings
	if !decodeBody(w, r, &cfg) {
		return
	}

	if err := s.sett.Update(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, s.sett.Snapshot())
}

func (s *Server) setSleep(w http.ResponseWriter, r *http.Request) {
	var req sleepRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.sett.SetSleepMode(req.Enabled)

	if req.Enabled {
		s.journal.Infof("sleep mode enabled")
	} else {
		s.journal.Infof("sleep mode disabled")
	}

	writeJSON(w, http.StatusOK, sleepRequest{Enabled: req.Enabled})
}

// --- link preview ---

type previewRequest struct {
	URL string `json:"url"`
}

func (s *Server) previewLink(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.URL == "" {
		writeError(w, http.StatusUnprocessableEntity, "url is required")

		return
	}

	p, err := s.preview.Fetch(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, p)
}

// --- helpers ---

func validPlatform(p domain.Platform) bool {
	return p == domain.PlatformTelegram || p == domain.PlatformBale
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")

		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(value)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
