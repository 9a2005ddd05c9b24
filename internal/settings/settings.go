// Package settings owns the process-wide operator configuration. A single
// Manager holds the authoritative snapshot behind a mutex; the queue
// processor and producers always read through Snapshot, never through a
// captured copy, so operator edits take effect on the next tick.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hparsa/relaycast/internal/core/domain"
	"github.com/hparsa/relaycast/internal/platform/schedule"
	"github.com/hparsa/relaycast/internal/store"
)

const (
	storeKey       = "settings"
	persistTimeout = 5 * time.Second
)

// Manager loads, serves and persists settings. Persistence is best-effort:
// a failed write keeps the in-memory state authoritative for the session.
type Manager struct {
	mu      sync.RWMutex
	current domain.Settings
	st      store.Store
	logger  *zerolog.Logger

	// persistWG lets tests wait for the async write-back.
	persistWG sync.WaitGroup
}

// New creates a Manager serving defaults until Load is called.
func New(st store.Store, logger *zerolog.Logger) *Manager {
	return &Manager{
		current: domain.DefaultSettings(),
		st:      st,
		logger:  logger,
	}
}

// Load reads persisted settings, falling back to defaults when nothing has
// been saved yet or the store is unreachable.
func (m *Manager) Load(ctx context.Context) {
	loaded := domain.DefaultSettings()

	err := m.st.Get(ctx, storeKey, &loaded)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn().Err(err).Msg("failed to load settings, using defaults")

		loaded = domain.DefaultSettings()
	}

	if loaded.FallbackCredentials == nil {
		loaded.FallbackCredentials = map[domain.Platform]string{}
	}

	m.mu.Lock()
	m.current = loaded
	m.mu.Unlock()
}

// SeedFallbackCredential fills a platform's global fallback token when the
// operator has not stored one, used to bootstrap from the environment.
func (m *Manager) SeedFallbackCredential(platform domain.Platform, token string) {
	if token == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.FallbackCredentials[platform] == "" {
		m.current.FallbackCredentials[platform] = token
	}
}

// Snapshot returns a copy of the current settings.
func (m *Manager) Snapshot() domain.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copySettings(m.current)
}

// QuietWindow returns the configured quiet-hours window.
func (m *Manager) QuietWindow() schedule.Window {
	s := m.Snapshot()

	return schedule.Window{Start: s.QuietHoursStart, End: s.QuietHoursEnd}
}

// FallbackCredential returns the global token for a platform, or empty.
func (m *Manager) FallbackCredential(platform domain.Platform) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current.FallbackCredentials[platform]
}

// Update validates and replaces the settings, then persists asynchronously.
func (m *Manager) Update(s domain.Settings) error {
	window := schedule.Window{Start: s.QuietHoursStart, End: s.QuietHoursEnd}
	if err := window.Validate(); err != nil {
		return fmt.Errorf("quiet hours: %w", err)
	}

	if s.FallbackCredentials == nil {
		s.FallbackCredentials = map[domain.Platform]string{}
	}

	m.mu.Lock()
	m.current = copySettings(s)
	m.mu.Unlock()

	m.persist()

	return nil
}

// SetSleepMode toggles the manual dequeue gate.
func (m *Manager) SetSleepMode(enabled bool) {
	m.mu.Lock()
	m.current.SleepMode = enabled
	m.mu.Unlock()

	m.persist()
}

// persist writes the snapshot back in the background. Failures are logged
// and swallowed: persistence must never take the pipeline down.
func (m *Manager) persist() {
	snapshot := m.Snapshot()

	m.persistWG.Add(1)

	go func() {
		defer m.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := m.st.Set(ctx, storeKey, snapshot); err != nil {
			m.logger.Warn().Err(err).Msg("failed to persist settings")
		}
	}()
}

// Flush waits for pending write-backs; used by tests and shutdown.
func (m *Manager) Flush() {
	m.persistWG.Wait()
}

func copySettings(s domain.Settings) domain.Settings {
	out := s
	out.FallbackCredentials = make(map[domain.Platform]string, len(s.FallbackCredentials))

	for k, v := range s.FallbackCredentials {
		out.FallbackCredentials[k] = v
	}

	return out
}
