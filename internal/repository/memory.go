package repository

import (
	"context"
	"sync"
	"time"

	"barberbook/internal/models"
)

type draftEntry struct {
	draft     models.BookingDraft
	expiresAt time.Time
}

// MemoryDraftStore keeps drafts in process. Expired drafts are dropped lazily on read.
type MemoryDraftStore struct {
	drafts     sync.Map
	rateLimits sync.Map
	ttl        time.Duration
	now        func() time.Time
}

func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemoryDraftStore) GetDraft(ctx context.Context, sessionID string) (*models.BookingDraft, error) {
	val, ok := r.drafts.Load(sessionID)
	if !ok {
		return nil, nil
	}
	entry := val.(draftEntry)
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		r.drafts.Delete(sessionID)
		return nil, nil
	}
	draft := entry.draft
	return &draft, nil
}

func (r *MemoryDraftStore) SetDraft(ctx context.Context, sessionID string, draft models.BookingDraft) error {
	entry := draftEntry{draft: draft}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.drafts.Store(sessionID, entry)
	return nil
}

func (r *MemoryDraftStore) ClearDraft(ctx context.Context, sessionID string) error {
	r.drafts.Delete(sessionID)
	return nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemoryDraftStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now()
	val, _ := r.rateLimits.LoadOrStore(key, &rateLimitEntry{})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++
	return entry.count <= limit, nil
}
