package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
)

// APIKeyRepositoryMock is an in-memory apikey.Repository used by tests.
type APIKeyRepositoryMock struct {
	mu   sync.RWMutex
	keys map[string]*apikey.APIKey
}

func NewAPIKeyRepositoryMock() *APIKeyRepositoryMock {
	return &APIKeyRepositoryMock{
		keys: make(map[string]*apikey.APIKey),
	}
}

var _ apikey.Repository = (*APIKeyRepositoryMock)(nil)

func (r *APIKeyRepositoryMock) FindByKeyID(ctx context.Context, keyID string) (*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.keys[keyID]
	if !ok {
		return nil, ierr.ErrAPIKeyNotFound
	}

	keyCopy := *k
	return &keyCopy, nil
}

func (r *APIKeyRepositoryMock) Create(ctx context.Context, key *apikey.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[key.KeyID]; exists {
		return ierr.ErrConflict
	}

	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	now := time.Now().UTC()
	key.CreatedAt = now
	key.UpdatedAt = now

	stored := *key
	r.keys[key.KeyID] = &stored
	return nil
}

func (r *APIKeyRepositoryMock) List(ctx context.Context) ([]*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*apikey.APIKey, 0, len(r.keys))
	for _, k := range r.keys {
		keyCopy := *k
		out = append(out, &keyCopy)
	}
	return out, nil
}

func (r *APIKeyRepositoryMock) UpdateFields(ctx context.Context, keyID string, upd apikey.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[keyID]
	if !ok {
		return ierr.ErrAPIKeyNotFound
	}

	if upd.Name != nil {
		k.Name = *upd.Name
	}
	if upd.Description != nil {
		k.Description = *upd.Description
	}
	if upd.Scopes != nil {
		k.Scopes = append([]apikey.Scope(nil), upd.Scopes...)
	}
	if upd.RateLimitPerMinute != nil {
		k.RateLimitPerMinute = *upd.RateLimitPerMinute
	}
	if upd.RateLimitPerHour != nil {
		k.RateLimitPerHour = *upd.RateLimitPerHour
	}
	if upd.IsActive != nil {
		k.IsActive = *upd.IsActive
	}
	if upd.MailCredentials != nil {
		creds := *upd.MailCredentials
		k.MailCredentials = &creds
	}
	k.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *APIKeyRepositoryMock) Delete(ctx context.Context, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[keyID]; !ok {
		return ierr.ErrAPIKeyNotFound
	}
	delete(r.keys, keyID)
	return nil
}

func (r *APIKeyRepositoryMock) UpdateLastUsed(ctx context.Context, keyID string, lastUsed time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if k, ok := r.keys[keyID]; ok {
		ts := lastUsed
		k.LastUsedAt = &ts
	}
	return nil
}
