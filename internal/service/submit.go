package service

import (
	"context"
	"errors"

	"barberbook/internal/domain"
	"barberbook/internal/events"
	"barberbook/internal/metrics"
	"barberbook/internal/models"
	"barberbook/internal/timezone"
)

// Submit runs one reservation attempt: validate, re-verify availability, commit.
// The returned Submission is also stored on the session. It returns
// domain.ErrSubmissionInProgress when another attempt has not finished yet.
func (c *Coordinator) Submit(ctx context.Context) (models.Submission, error) {
	c.mu.Lock()
	if c.session.Submission.Phase.InFlight() {
		c.mu.Unlock()
		return models.Submission{}, domain.ErrSubmissionInProgress
	}
	c.session.Submission = models.Submission{Phase: models.PhaseValidating}
	draft := c.session.Draft
	duration := c.durationFor(draft.ServiceName)

	start, ok := timezone.Normalize(draft.Date, draft.Time)
	if !ok {
		c.mu.Unlock()
		return c.finish(models.PhaseRejected, models.MsgSelectDateTime, nil), nil
	}
	if missing := draft.Missing(); len(missing) > 0 {
		c.mu.Unlock()
		c.logger.Debug().Strs("missing", missing).Msg("submission rejected: incomplete draft")
		return c.finish(models.PhaseRejected, models.MsgMissingFields, nil), nil
	}
	c.session.Submission.Phase = models.PhaseVerifying
	c.mu.Unlock()

	q := models.AvailabilityQuery{BarberID: draft.BarberID, Start: start, DurationMinutes: duration}
	outcome, err := c.prober.Probe(ctx, q, ModeFinal)
	if err != nil {
		return c.finish(models.PhaseFailed, models.MsgUnableToVerify, nil), nil
	}
	if outcome == models.OutcomeBusy {
		c.slotTaken(ctx, q, "verify")
		return c.finish(models.PhaseRejected, models.MsgSlotTaken, nil), nil
	}

	c.setPhase(models.PhaseCommitting)
	created, err := c.ledger.CreateReservation(ctx, draft.Request(start, duration))
	if err != nil {
		msg, ok := domain.Reason(err)
		if !ok {
			msg = models.MsgReservationFailed
		}
		c.logger.Warn().Err(err).Int64("barber_id", draft.BarberID).Time("start", start).Msg("reservation rejected by ledger")
		if errors.Is(err, domain.ErrConflict) {
			c.slotTaken(ctx, q, "commit")
		}
		return c.finish(models.PhaseFailed, msg, nil), nil
	}

	c.mu.Lock()
	c.session.Draft.ClearSchedule()
	c.session.Availability = models.NeutralStatus()
	c.session.VisibleBarbers = append([]models.Barber(nil), c.session.Barbers...)
	c.invalidate(keySelection)
	c.invalidate(keyFilter)
	c.mu.Unlock()

	c.logger.Info().
		Int64("reservation_id", created.ID).
		Int64("barber_id", created.BarberID).
		Time("start", created.StartTime).
		Msg("reservation created")
	c.publish(events.EventReservationCreated, events.NewReservationPayload(*created, "form"))
	if err := c.RefreshReservations(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("refresh after reservation failed")
	}
	return c.finish(models.PhaseSucceeded, models.MsgReservationCreated, created), nil
}

// slotTaken records a lost race and synchronously reloads reservations so the
// conflicting booking is visible.
func (c *Coordinator) slotTaken(ctx context.Context, q models.AvailabilityQuery, stage string) {
	c.publish(events.EventSlotTaken, events.SlotTakenPayload{
		BarberID:        q.BarberID,
		StartTime:       q.Start,
		DurationMinutes: q.DurationMinutes,
		Stage:           stage,
	})
	if err := c.RefreshReservations(ctx); err != nil {
		c.logger.Warn().Err(err).Str("stage", stage).Msg("refresh after slot taken failed")
	}
}

func (c *Coordinator) setPhase(phase models.SubmissionPhase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Submission.Phase = phase
}

func (c *Coordinator) finish(phase models.SubmissionPhase, msg string, created *models.Reservation) models.Submission {
	metrics.IncSubmission(string(phase))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Submission = models.Submission{Phase: phase, Message: msg, Reservation: created}
	return c.session.Submission
}
