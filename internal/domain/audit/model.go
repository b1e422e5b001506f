package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one append-only audit record, written once per request after
// the handler has produced its outcome.
type Entry struct {
	ID           int64     `db:"id"`
	APIKeyRef    uuid.UUID `db:"api_key_ref"`
	KeyID        string    `db:"key_id"`
	Endpoint     string    `db:"endpoint"`
	Method       string    `db:"method"`
	IPAddress    string    `db:"ip_address"`
	UserAgent    string    `db:"user_agent"`
	Status       int       `db:"status"`
	ErrorMessage string    `db:"error_message"`
	Timestamp    time.Time `db:"timestamp"`
}

type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
