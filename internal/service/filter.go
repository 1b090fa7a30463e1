package service

import (
	"context"
	"sync"
	"time"

	"barberbook/internal/models"
)

// ResourceFilter reduces the catalog to the barbers free for an interval.
type ResourceFilter struct {
	prober *Prober
}

func NewResourceFilter(prober *Prober) *ResourceFilter {
	return &ResourceFilter{prober: prober}
}

// Filter probes every barber concurrently and waits for all of them.
// A failed probe counts as available so an outage never empties the list.
// The returned map holds the raw outcome per barber id.
func (f *ResourceFilter) Filter(ctx context.Context, barbers []models.Barber, start time.Time, durationMinutes int) ([]models.Barber, map[int64]models.Outcome) {
	outcomes := make([]models.Outcome, len(barbers))

	var wg sync.WaitGroup
	for i, b := range barbers {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			q := models.AvailabilityQuery{BarberID: id, Start: start, DurationMinutes: durationMinutes}
			outcomes[i], _ = f.prober.Probe(ctx, q, ModeFilter)
		}(i, b.ID)
	}
	wg.Wait()

	visible := make([]models.Barber, 0, len(barbers))
	byID := make(map[int64]models.Outcome, len(barbers))
	for i, b := range barbers {
		byID[b.ID] = outcomes[i]
		if outcomes[i] != models.OutcomeBusy {
			visible = append(visible, b)
		}
	}
	return visible, byID
}

// Reconcile keeps selected when it is visible, otherwise falls back to the
// first visible barber, or 0 when nothing is visible.
func Reconcile(selected int64, visible []models.Barber) int64 {
	if selected != 0 && models.ContainsBarber(visible, selected) {
		return selected
	}
	if len(visible) == 0 {
		return 0
	}
	return visible[0].ID
}
