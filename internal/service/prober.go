package service

import (
	"context"

	"barberbook/internal/domain"
	"barberbook/internal/metrics"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
)

// Probe modes, used for metrics and logs.
const (
	ModeFilter    = "filter"
	ModeSelection = "selection"
	ModeFinal     = "final"
)

// Prober asks the ledger whether one barber is free for one interval.
// It reports what happened; the failure policy belongs to the caller.
type Prober struct {
	ledger domain.Ledger
	logger *zerolog.Logger
}

func NewProber(ledger domain.Ledger, logger *zerolog.Logger) *Prober {
	return &Prober{ledger: ledger, logger: logger}
}

// Probe returns OutcomeUnknown together with the error when the check itself fails.
func (p *Prober) Probe(ctx context.Context, q models.AvailabilityQuery, mode string) (models.Outcome, error) {
	available, err := p.ledger.CheckAvailable(ctx, q)
	outcome := models.OutcomeBusy
	switch {
	case err != nil:
		outcome = models.OutcomeUnknown
	case available:
		outcome = models.OutcomeAvailable
	}
	metrics.IncProbe(mode, outcome.String())

	if err != nil && ctx.Err() == nil {
		p.logger.Warn().
			Err(err).
			Str("mode", mode).
			Str("query", q.Key()).
			Msg("availability probe failed")
	}
	return outcome, err
}
