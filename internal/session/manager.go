package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type entry struct {
	coord    *service.Coordinator
	lastSeen time.Time
}

// Manager maps session ids to live coordinators. Drafts are written through to
// the store after every mutation so a session survives a restart or eviction.
type Manager struct {
	ledger          domain.Ledger
	store           domain.DraftStore
	events          domain.EventPublisher
	logger          *zerolog.Logger
	idleTTL         time.Duration
	fallbackMinutes int

	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

func NewManager(
	ledger domain.Ledger,
	store domain.DraftStore,
	events domain.EventPublisher,
	idleTTL time.Duration,
	fallbackMinutes int,
	logger *zerolog.Logger,
) *Manager {
	return &Manager{
		ledger:          ledger,
		store:           store,
		events:          events,
		logger:          logger,
		idleTTL:         idleTTL,
		fallbackMinutes: fallbackMinutes,
		sessions:        make(map[string]*entry),
		now:             time.Now,
	}
}

func (m *Manager) newCoordinator() *service.Coordinator {
	c := service.NewCoordinator(m.ledger, m.events, m.logger)
	c.SetFallbackDuration(m.fallbackMinutes)
	return c
}

// Create starts a new session with the catalog loaded.
func (m *Manager) Create(ctx context.Context) (string, models.Session, error) {
	id := uuid.NewString()
	coord := m.newCoordinator()
	s, err := coord.LoadCatalog(ctx)
	if err != nil {
		return "", s, err
	}

	m.mu.Lock()
	m.sessions[id] = &entry{coord: coord, lastSeen: m.now()}
	m.mu.Unlock()

	m.save(ctx, id, s.Draft)
	m.logger.Info().Str("session_id", id).Msg("session created")
	return id, s, nil
}

// Get returns the live coordinator for id, rebuilding it from the stored draft if needed.
func (m *Manager) Get(ctx context.Context, id string) (*service.Coordinator, error) {
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = m.now()
		m.mu.Unlock()
		return e.coord, nil
	}
	m.mu.Unlock()

	draft, err := m.store.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil, domain.ErrUnknownSession
	}

	coord := m.newCoordinator()
	coord.Restore(*draft)
	if _, err := coord.LoadCatalog(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		// Another request rebuilt it first.
		e.lastSeen = m.now()
		return e.coord, nil
	}
	m.sessions[id] = &entry{coord: coord, lastSeen: m.now()}
	m.logger.Info().Str("session_id", id).Msg("session restored from store")
	return coord, nil
}

func (m *Manager) Snapshot(ctx context.Context, id string) (models.Session, error) {
	coord, err := m.Get(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	return coord.Snapshot(), nil
}

func (m *Manager) Update(ctx context.Context, id string, edit service.Edit) (models.Session, error) {
	coord, err := m.Get(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	s := coord.Update(ctx, edit)
	m.save(ctx, id, s.Draft)
	return s, nil
}

func (m *Manager) Submit(ctx context.Context, id string) (models.Session, error) {
	coord, err := m.Get(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	if _, err := coord.Submit(ctx); err != nil {
		return coord.Snapshot(), err
	}
	s := coord.Snapshot()
	m.save(ctx, id, s.Draft)
	return s, nil
}

func (m *Manager) Refresh(ctx context.Context, id string) (models.Session, error) {
	coord, err := m.Get(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	if err := coord.RefreshReservations(ctx); err != nil {
		return coord.Snapshot(), err
	}
	return coord.Snapshot(), nil
}

func (m *Manager) Cancel(ctx context.Context, id string, reservationID int64) (models.Session, error) {
	coord, err := m.Get(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	err = coord.Cancel(ctx, reservationID)
	return coord.Snapshot(), err
}

// Close forgets the session and its stored draft.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return m.store.ClearDraft(ctx, id)
}

// Sweep evicts sessions idle longer than the TTL from memory. Their drafts stay
// in the store until it expires them.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartJanitor runs Sweep every interval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Debug().Int("evicted", n).Msg("idle sessions evicted")
				}
			}
		}
	}()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) save(ctx context.Context, id string, draft models.BookingDraft) {
	if err := m.store.SetDraft(ctx, id, draft); err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("failed to persist draft")
	}
}
