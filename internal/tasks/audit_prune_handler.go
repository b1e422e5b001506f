package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/email-gateway-api/internal/domain/audit"
	"go.uber.org/zap"
)

// AuditPruneHandler deletes audit entries older than the configured
// retention. Runs periodically via the scheduler.
type AuditPruneHandler struct {
	repo   audit.Repository
	logger *zap.Logger
}

func NewAuditPruneHandler(repo audit.Repository, logger *zap.Logger) *AuditPruneHandler {
	return &AuditPruneHandler{
		repo:   repo,
		logger: logger.Named("AuditPruneHandler"),
	}
}

func (h *AuditPruneHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeAuditPrune {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for audit prune task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	retention := p.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-retention)

	h.logger.Info("Processing audit prune task", zap.Time("cutoff", cutoff))

	deleted, err := h.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		h.logger.Error("Failed to prune audit entries", zap.Error(err))
		return fmt.Errorf("repository error pruning audit entries: %w", err)
	}

	h.logger.Info("Audit prune task finished", zap.Int64("deleted", deleted))
	return nil
}
