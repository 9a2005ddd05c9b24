// Package queue implements the outbound delivery pipeline: the ordered item
// queue, target resolution, caption templating, media chunking and the tick
// processor that drains the queue one item at a time.
package queue

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
	storeKey       = "queue"
	persistTimeout = 5 * time.Second
)

// Manager errors.
var (
	ErrItemNotFound   = errors.New("queue item not found")
	ErrItemProcessing = errors.New("queue item is being processed")
	ErrItemNotFailed  = errors.New("queue item has not failed")
)

// Manager owns the in-memory queue and writes it back to the store after
// every mutation. Items are kept in arrival order; the processor claims the
// oldest eligible pending item.
type Manager struct {
	mu     sync.Mutex
	items  []domain.QueueItem
	st     store.Store
	logger *zerolog.Logger

	persistWG sync.WaitGroup

	newID func() string
	now   func() time.Time
}

// NewManager creates an empty queue backed by st.
func NewManager(st store.Store, logger *zerolog.Logger) *Manager {
	return &Manager{
		st:     st,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Load restores the persisted queue. Items left in processing by a previous
// run are returned to pending so they are re-attempted rather than stranded.
func (m *Manager) Load(ctx context.Context) {
	var loaded []domain.QueueItem

	err := m.st.Get(ctx, storeKey, &loaded)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn().Err(err).Msg("failed to load queue, starting empty")

		return
	}

	recovered := 0

	for i := range loaded {
		if loaded[i].Status == domain.StatusProcessing {
			loaded[i].Status = domain.StatusPending
			recovered++
		}
	}

	if recovered > 0 {
		m.logger.Info().Int("items", recovered).Msg("recovered in-flight queue items to pending")
	}

	m.mu.Lock()
	m.items = loaded
	m.mu.Unlock()
}

// Enqueue appends one item, filling in id, arrival time and pending status.
// The stored item is returned with its assigned id.
func (m *Manager) Enqueue(item domain.QueueItem) domain.QueueItem {
	if item.ID == "" {
		item.ID = m.newID()
	}

	item.AddedAt = m.now()
	item.Status = domain.StatusPending
	item.RetryCount = 0
	item.NotBefore = time.Time{}

	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()

	m.persist()

	return item
}

// Items returns a copy of the queue in arrival order.
func (m *Manager) Items() []domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.QueueItem, len(m.items))
	copy(out, m.items)

	return out
}

// PendingCount returns the number of items still awaiting delivery.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for i := range m.items {
		if m.items[i].Status == domain.StatusPending {
			n++
		}
	}

	return n
}

// Remove deletes an item by id. An item currently being processed cannot be
// removed; its delivery attempt runs to completion first.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()

	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()

		return ErrItemNotFound
	}

	if m.items[idx].Status == domain.StatusProcessing {
		m.mu.Unlock()

		return ErrItemProcessing
	}

	m.items = append(m.items[:idx], m.items[idx+1:]...)
	m.mu.Unlock()

	m.persist()

	return nil
}

// ResetForRetry returns a failed item to pending with a clean retry counter
// so the processor picks it up again on a later tick.
func (m *Manager) ResetForRetry(id string) error {
	m.mu.Lock()

	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()

		return ErrItemNotFound
	}

	if m.items[idx].Status != domain.StatusFailed {
		m.mu.Unlock()

		return ErrItemNotFailed
	}

	m.items[idx].Status = domain.StatusPending
	m.items[idx].RetryCount = 0
	m.items[idx].NotBefore = time.Time{}
	m.mu.Unlock()

	m.persist()

	return nil
}

// claimNext atomically marks the oldest eligible pending item as processing
// and returns a copy of it. Items with a NotBefore in the future are skipped
// without losing their queue position.
func (m *Manager) claimNext(now time.Time) (domain.QueueItem, bool) {
	m.mu.Lock()

	for i := range m.items {
		if m.items[i].Status != domain.StatusPending {
			continue
		}

		if !m.items[i].NotBefore.IsZero() && now.Before(m.items[i].NotBefore) {
			continue
		}

		m.items[i].Status = domain.StatusProcessing
		claimed := m.items[i]

		m.mu.Unlock()
		m.persist()

		return claimed, true
	}

	m.mu.Unlock()

	return domain.QueueItem{}, false
}

// markCompleted transitions a claimed item to its terminal success state.
func (m *Manager) markCompleted(id string) {
	m.setStatus(id, domain.StatusCompleted)
}

// markFailed transitions a claimed item to its terminal failure state.
func (m *Manager) markFailed(id string) {
	m.setStatus(id, domain.StatusFailed)
}

// requeueForRetry returns a claimed item to pending with a bumped retry
// counter and a backoff deadline before which it will not be claimed again.
func (m *Manager) requeueForRetry(id string, notBefore time.Time) {
	m.mu.Lock()

	if idx := m.indexOf(id); idx >= 0 {
		m.items[idx].Status = domain.StatusPending
		m.items[idx].RetryCount++
		m.items[idx].NotBefore = notBefore
	}

	m.mu.Unlock()

	m.persist()
}

func (m *Manager) setStatus(id string, status domain.QueueStatus) {
	m.mu.Lock()

	if idx := m.indexOf(id); idx >= 0 {
		m.items[idx].Status = status
	}

	m.mu.Unlock()

	m.persist()
}

// indexOf assumes m.mu is held.
func (m *Manager) indexOf(id string) int {
	for i := range m.items {
		if m.items[i].ID == id {
			return i
		}
	}

	return -1
}

// persist writes the queue back in the background. Failures are logged and
// swallowed: the in-memory queue stays authoritative for the session.
func (m *Manager) persist() {
	snapshot := m.Items()

	m.persistWG.Add(1)

	go func() {
		defer m.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := m.st.Set(ctx, storeKey, snapshot); err != nil {
			m.logger.Warn().Err(err).Msg("failed to persist queue")
		}
	}()
}

// Flush waits for pending write-backs; used by tests and shutdown.
func (m *Manager) Flush() {
	m.persistWG.Wait()
}
