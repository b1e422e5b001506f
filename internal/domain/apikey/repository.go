package apikey

import (
	"context"
	"time"
)

// Update carries the mutable fields of an API key. Nil fields are left
// untouched by the repository.
type Update struct {
	Name               *string
	Description        *string
	Scopes             []Scope
	RateLimitPerMinute *int
	RateLimitPerHour   *int
	IsActive           *bool
	MailCredentials    *MailCredentials
}

type Repository interface {
	FindByKeyID(ctx context.Context, keyID string) (*APIKey, error)
	Create(ctx context.Context, key *APIKey) error
	List(ctx context.Context) ([]*APIKey, error)
	UpdateFields(ctx context.Context, keyID string, upd Update) error
	Delete(ctx context.Context, keyID string) error
	UpdateLastUsed(ctx context.Context, keyID string, lastUsed time.Time) error
}
