package apikey

import (
	"time"

	"github.com/google/uuid"
)

// Scope is a capability token gating a class of operations.
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
	ScopeAdmin Scope = "admin"
)

// ValidScope reports whether s is one of the known scopes.
func ValidScope(s Scope) bool {
	switch s {
	case ScopeRead, ScopeWrite, ScopeAdmin:
		return true
	}
	return false
}

// MailCredentials is the optional per-key mailbox account. The password is
// encrypted before it is persisted and decrypted only when a mail operation
// needs it; EncryptedPassword never holds plaintext in a stored record.
type MailCredentials struct {
	Address           string `json:"address"`
	EncryptedPassword string `json:"encrypted_password"`
	SMTPHost          string `json:"smtp_host"`
	SMTPPort          int    `json:"smtp_port"`
	IMAPHost          string `json:"imap_host"`
	IMAPPort          int    `json:"imap_port"`
}

// APIKey is the authorization record of an issued key. SecretHash is the
// SHA-256 digest of the raw secret; the raw secret itself is returned once
// at issuance and never stored.
type APIKey struct {
	ID                 uuid.UUID        `db:"id"`
	KeyID              string           `db:"key_id"`
	SecretHash         string           `db:"secret_hash"`
	Name               string           `db:"name"`
	Description        string           `db:"description"`
	Scopes             []Scope          `db:"scopes"`
	RateLimitPerMinute int              `db:"rate_limit_per_minute"`
	RateLimitPerHour   int              `db:"rate_limit_per_hour"`
	IsActive           bool             `db:"is_active"`
	MailCredentials    *MailCredentials `db:"mail_credentials"`
	CreatedAt          time.Time        `db:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at"`
	LastUsedAt         *time.Time       `db:"last_used_at"`
}

// HasScope is a pure membership test against the key's scope set.
func (k *APIKey) HasScope(required Scope) bool {
	for _, s := range k.Scopes {
		if s == required {
			return true
		}
	}
	return false
}

const (
	KeyIDBytes  = 32
	SecretBytes = 64
)
