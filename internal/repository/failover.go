package repository

import (
	"context"
	"sync/atomic"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverDraftStore serves from primary and degrades to fallback once primary
// errors. The primary is retried after recoveryInterval.
type FailoverDraftStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverDraftStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverDraftStore {
	return &FailoverDraftStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverDraftStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary draft store failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverDraftStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverDraftStore) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary draft store recovered")
	}
}

func (r *FailoverDraftStore) GetDraft(ctx context.Context, sessionID string) (*models.BookingDraft, error) {
	if r.usePrimary() {
		draft, err := r.primary.GetDraft(ctx, sessionID)
		if err == nil {
			r.recovered()
			if draft == nil {
				// Drafts written while primary was down live in the fallback.
				return r.fallback.GetDraft(ctx, sessionID)
			}
			return draft, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetDraft(ctx, sessionID)
}

func (r *FailoverDraftStore) SetDraft(ctx context.Context, sessionID string, draft models.BookingDraft) error {
	if r.usePrimary() {
		err := r.primary.SetDraft(ctx, sessionID, draft)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetDraft(ctx, sessionID, draft)
}

func (r *FailoverDraftStore) ClearDraft(ctx context.Context, sessionID string) error {
	_ = r.fallback.ClearDraft(ctx, sessionID)
	if r.usePrimary() {
		err := r.primary.ClearDraft(ctx, sessionID)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return nil
}

func (r *FailoverDraftStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
