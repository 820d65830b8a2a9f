package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/resumezen/internal/service"
	"github.com/DukeRupert/resumezen/internal/worker"
)

// ExpireUserPlansHandler deactivates user plans whose expiry has passed.
// Eligibility already treats them as expired on read; this persists it.
type ExpireUserPlansHandler struct {
	credits service.CreditService
	logger  *slog.Logger
}

// NewExpireUserPlansHandler creates a new handler for plan expiry jobs.
func NewExpireUserPlansHandler(credits service.CreditService, logger *slog.Logger) *ExpireUserPlansHandler {
	return &ExpireUserPlansHandler{
		credits: credits,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *ExpireUserPlansHandler) Type() string {
	return worker.JobTypeExpireUserPlans
}

// Handle executes the plan expiry job.
func (h *ExpireUserPlansHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.MaintenancePayload
	if err := worker.DecodePayload(payload, &p); err != nil {
		return err
	}

	n, err := h.credits.ExpirePlans(ctx)
	if err != nil {
		return fmt.Errorf("expire plans: %w", err)
	}

	h.logger.Debug("Plan expiry finished", "expired", n, "requested_at", p.RequestedAt)
	return nil
}
