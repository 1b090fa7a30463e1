package service

import (
	"context"

	"barberbook/internal/events"
	"barberbook/internal/models"
)

// Cancel asks the ledger to cancel a reservation. On failure the session is
// left untouched and the error is returned; on success the list is reloaded.
func (c *Coordinator) Cancel(ctx context.Context, reservationID int64) error {
	if err := c.ledger.CancelReservation(ctx, reservationID); err != nil {
		c.logger.Warn().Err(err).Int64("reservation_id", reservationID).Msg("cancel failed")
		return err
	}

	c.mu.Lock()
	var known *models.Reservation
	for i := range c.session.Reservations {
		if c.session.Reservations[i].ID == reservationID {
			r := c.session.Reservations[i]
			known = &r
			break
		}
	}
	c.mu.Unlock()

	if known != nil {
		known.Status = models.StatusCanceled
		c.publish(events.EventReservationCanceled, events.NewReservationPayload(*known, "form"))
	}
	if err := c.RefreshReservations(ctx); err != nil {
		c.logger.Warn().Err(err).Int64("reservation_id", reservationID).Msg("refresh after cancel failed")
	}
	return nil
}
