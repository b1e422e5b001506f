package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"go.uber.org/zap"
)

type APIKeyRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAPIKeyRepository(db *pgxpool.Pool, logger *zap.Logger) *APIKeyRepository {
	return &APIKeyRepository{
		db:     db,
		logger: logger.Named("APIKeyRepository"),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

const apiKeyColumns = `id, key_id, secret_hash, name, description, scopes,
		rate_limit_per_minute, rate_limit_per_hour, is_active,
		mail_credentials, created_at, updated_at, last_used_at`

func (r *APIKeyRepository) FindByKeyID(ctx context.Context, keyID string) (*apikey.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_id = $1`
	row := r.db.QueryRow(ctx, query, keyID)

	key, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("API key not found", zap.String("key_id", keyID))
			return nil, ierr.ErrAPIKeyNotFound
		}
		r.logger.Error("Failed to find api key", zap.String("key_id", keyID), zap.Error(err))
		return nil, fmt.Errorf("db error finding api key: %w", err)
	}

	return key, nil
}

func (r *APIKeyRepository) Create(ctx context.Context, key *apikey.APIKey) error {
	query := `
		INSERT INTO api_keys (key_id, secret_hash, name, description, scopes,
			rate_limit_per_minute, rate_limit_per_hour, is_active, mail_credentials)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	credsJSON, err := marshalCredentials(key.MailCredentials)
	if err != nil {
		return fmt.Errorf("encoding mail credentials: %w", err)
	}

	err = r.db.QueryRow(ctx, query,
		key.KeyID,
		key.SecretHash,
		key.Name,
		key.Description,
		scopeStrings(key.Scopes),
		key.RateLimitPerMinute,
		key.RateLimitPerHour,
		key.IsActive,
		credsJSON,
	).Scan(&key.ID, &key.CreatedAt, &key.UpdatedAt)

	if err != nil {
		if pgErr, ok := uniqueViolation(err); ok {
			r.logger.Warn("Failed to create API key due to unique constraint violation",
				zap.String("constraint", pgErr.ConstraintName),
				zap.String("key_id", key.KeyID),
			)
			return fmt.Errorf("%w: api key constraint violation (%s)", ierr.ErrConflict, pgErr.ConstraintName)
		}
		r.logger.Error("Failed to create api key in database", zap.Error(err))
		return fmt.Errorf("db error creating api key: %w", err)
	}

	r.logger.Info("API key created", zap.String("id", key.ID.String()), zap.String("key_id", key.KeyID))
	return nil
}

func (r *APIKeyRepository) List(ctx context.Context) ([]*apikey.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list api keys", zap.Error(err))
		return nil, fmt.Errorf("db error listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []*apikey.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("db error scanning api key row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error iterating api keys: %w", err)
	}

	return keys, nil
}

func (r *APIKeyRepository) UpdateFields(ctx context.Context, keyID string, upd apikey.Update) error {
	setClauses := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Name != nil {
		setClauses = append(setClauses, "name = "+arg(*upd.Name))
	}
	if upd.Description != nil {
		setClauses = append(setClauses, "description = "+arg(*upd.Description))
	}
	if upd.Scopes != nil {
		setClauses = append(setClauses, "scopes = "+arg(scopeStrings(upd.Scopes)))
	}
	if upd.RateLimitPerMinute != nil {
		setClauses = append(setClauses, "rate_limit_per_minute = "+arg(*upd.RateLimitPerMinute))
	}
	if upd.RateLimitPerHour != nil {
		setClauses = append(setClauses, "rate_limit_per_hour = "+arg(*upd.RateLimitPerHour))
	}
	if upd.IsActive != nil {
		setClauses = append(setClauses, "is_active = "+arg(*upd.IsActive))
	}
	if upd.MailCredentials != nil {
		credsJSON, err := marshalCredentials(upd.MailCredentials)
		if err != nil {
			return fmt.Errorf("encoding mail credentials: %w", err)
		}
		setClauses = append(setClauses, "mail_credentials = "+arg(credsJSON))
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, "updated_at = NOW()")

	query := "UPDATE api_keys SET "
	for i, clause := range setClauses {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE key_id = " + arg(keyID)

	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update api key", zap.String("key_id", keyID), zap.Error(err))
		return fmt.Errorf("%w: %v", ierr.ErrAPIKeyUpdateFailed, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ierr.ErrAPIKeyNotFound
	}

	r.logger.Info("API key updated", zap.String("key_id", keyID))
	return nil
}

func (r *APIKeyRepository) Delete(ctx context.Context, keyID string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM api_keys WHERE key_id = $1`, keyID)
	if err != nil {
		r.logger.Error("Failed to delete api key", zap.String("key_id", keyID), zap.Error(err))
		return fmt.Errorf("db error deleting api key: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ierr.ErrAPIKeyNotFound
	}

	r.logger.Info("API key deleted", zap.String("key_id", keyID))
	return nil
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, keyID string, lastUsed time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $1 WHERE key_id = $2`
	cmdTag, err := r.db.Exec(ctx, query, lastUsed, keyID)
	if err != nil {
		r.logger.Error("Failed to update api key last_used_at", zap.String("key_id", keyID), zap.Error(err))
		return fmt.Errorf("db error updating last used time: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.Warn("API key not found when updating last_used_at", zap.String("key_id", keyID))
	}
	return nil
}

// uniqueViolation reports whether err carries a postgres unique
// constraint violation (SQLSTATE 23505).
func uniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr, true
	}
	return nil, false
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAPIKey(row rowScanner) (*apikey.APIKey, error) {
	var key apikey.APIKey
	var scopes []string
	var credsJSON []byte
	var lastUsed sql.NullTime

	err := row.Scan(
		&key.ID,
		&key.KeyID,
		&key.SecretHash,
		&key.Name,
		&key.Description,
		&scopes,
		&key.RateLimitPerMinute,
		&key.RateLimitPerHour,
		&key.IsActive,
		&credsJSON,
		&key.CreatedAt,
		&key.UpdatedAt,
		&lastUsed,
	)
	if err != nil {
		return nil, err
	}

	key.Scopes = make([]apikey.Scope, len(scopes))
	for i, s := range scopes {
		key.Scopes[i] = apikey.Scope(s)
	}
	if len(credsJSON) > 0 {
		var creds apikey.MailCredentials
		if err := json.Unmarshal(credsJSON, &creds); err != nil {
			return nil, fmt.Errorf("decoding mail credentials: %w", err)
		}
		key.MailCredentials = &creds
	}
	if lastUsed.Valid {
		key.LastUsedAt = &lastUsed.Time
	}

	return &key, nil
}

func scopeStrings(scopes []apikey.Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}

func marshalCredentials(creds *apikey.MailCredentials) ([]byte, error) {
	if creds == nil {
		return nil, nil
	}
	return json.Marshal(creds)
}
