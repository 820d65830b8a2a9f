package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/resumezen/internal/service"
	"github.com/DukeRupert/resumezen/internal/worker"
)

// PurgeExpiredSessionsHandler deletes sessions past their expiry.
type PurgeExpiredSessionsHandler struct {
	users  service.UserService
	logger *slog.Logger
}

// NewPurgeExpiredSessionsHandler creates a new handler for session purge jobs.
func NewPurgeExpiredSessionsHandler(users service.UserService, logger *slog.Logger) *PurgeExpiredSessionsHandler {
	return &PurgeExpiredSessionsHandler{
		users:  users,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *PurgeExpiredSessionsHandler) Type() string {
	return worker.JobTypePurgeExpiredSessions
}

// Handle executes the session purge job.
func (h *PurgeExpiredSessionsHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.MaintenancePayload
	if err := worker.DecodePayload(payload, &p); err != nil {
		return err
	}

	n, err := h.users.DeleteExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}

	if n > 0 {
		h.logger.Info("Purged expired sessions", "count", n)
	}
	return nil
}

var (
	_ worker.JobHandler = (*ExpireUserPlansHandler)(nil)
	_ worker.JobHandler = (*PurgeExpiredSessionsHandler)(nil)
)
