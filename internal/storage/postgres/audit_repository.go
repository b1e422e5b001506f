package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/email-gateway-api/internal/domain/audit"
	"go.uber.org/zap"
)

type AuditRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAuditRepository(db *pgxpool.Pool, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger.Named("AuditRepository"),
	}
}

var _ audit.Repository = (*AuditRepository)(nil)

func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	query := `
		INSERT INTO audit_logs (api_key_ref, key_id, endpoint, method, ip_address,
			user_agent, status, error_message, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		entry.APIKeyRef,
		entry.KeyID,
		entry.Endpoint,
		entry.Method,
		entry.IPAddress,
		entry.UserAgent,
		entry.Status,
		entry.ErrorMessage,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("key_id", entry.KeyID),
			zap.String("endpoint", entry.Endpoint),
			zap.Error(err),
		)
		return fmt.Errorf("db error appending audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM audit_logs WHERE timestamp < $1`, cutoff)
	if err != nil {
		r.logger.Error("Failed to prune audit entries", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, fmt.Errorf("db error pruning audit entries: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}
