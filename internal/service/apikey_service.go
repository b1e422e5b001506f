package service

import (
	"context"
	"fmt"

	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/handler/dto"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"github.com/makkenzo/email-gateway-api/internal/secrets"
	"github.com/makkenzo/email-gateway-api/internal/util"
	"go.uber.org/zap"
)

// APIKeyDefaults holds the rate limits applied to keys issued without
// explicit values.
type APIKeyDefaults struct {
	RateLimitPerMinute int
	RateLimitPerHour   int
}

type APIKeyService struct {
	repo     apikey.Repository
	cipher   *secrets.Cipher
	defaults APIKeyDefaults
	logger   *zap.Logger
}

func NewAPIKeyService(repo apikey.Repository, cipher *secrets.Cipher, defaults APIKeyDefaults, logger *zap.Logger) *APIKeyService {
	if defaults.RateLimitPerMinute <= 0 {
		defaults.RateLimitPerMinute = 60
	}
	if defaults.RateLimitPerHour <= 0 {
		defaults.RateLimitPerHour = 1000
	}
	return &APIKeyService{
		repo:     repo,
		cipher:   cipher,
		defaults: defaults,
		logger:   logger.Named("APIKeyService"),
	}
}

// Issue creates a new key and returns the raw secret exactly once. Only
// the hash is persisted; the secret cannot be recovered afterwards.
func (s *APIKeyService) Issue(ctx context.Context, req *dto.CreateAPIKeyRequest) (*dto.CreateAPIKeyResponse, error) {
	s.logger.Info("Issuing new API key", zap.String("name", req.Name))

	keyID, rawSecret, secretHash, err := util.GenerateKeyPair()
	if err != nil {
		s.logger.Error("Failed to generate api key material", zap.Error(err))
		return nil, fmt.Errorf("%w: failed generating key material", ierr.ErrInternalServer)
	}

	scopes := toScopes(req.Scopes)
	if len(scopes) == 0 {
		scopes = []apikey.Scope{apikey.ScopeRead}
	}

	perMinute := req.RateLimitPerMinute
	if perMinute == 0 {
		perMinute = s.defaults.RateLimitPerMinute
	}
	perHour := req.RateLimitPerHour
	if perHour == 0 {
		perHour = s.defaults.RateLimitPerHour
	}

	newKey := &apikey.APIKey{
		KeyID:              keyID,
		SecretHash:         secretHash,
		Name:               req.Name,
		Description:        req.Description,
		Scopes:             scopes,
		RateLimitPerMinute: perMinute,
		RateLimitPerHour:   perHour,
		IsActive:           true,
	}

	if err := s.repo.Create(ctx, newKey); err != nil {
		s.logger.Error("Failed to save new api key", zap.Error(err))
		return nil, fmt.Errorf("repository error creating api key: %w", err)
	}

	s.logger.Info("API key issued", zap.String("key_id", keyID))

	return &dto.CreateAPIKeyResponse{
		KeyID:              keyID,
		SecretKey:          rawSecret,
		Name:               newKey.Name,
		Description:        newKey.Description,
		Scopes:             fromScopes(newKey.Scopes),
		RateLimitPerMinute: newKey.RateLimitPerMinute,
		RateLimitPerHour:   newKey.RateLimitPerHour,
		CreatedAt:          newKey.CreatedAt,
	}, nil
}

func (s *APIKeyService) List(ctx context.Context) ([]*dto.APIKeyResponse, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list api keys from repository", zap.Error(err))
		return nil, fmt.Errorf("repository error listing api keys: %w", err)
	}

	responses := make([]*dto.APIKeyResponse, len(keys))
	for i, key := range keys {
		responses[i] = dto.NewAPIKeyResponse(key)
	}
	return responses, nil
}

// Update mutates a key's fields. Only an admin key or the key itself may
// do so; mail passwords are encrypted before they reach the repository.
func (s *APIKeyService) Update(ctx context.Context, actor *apikey.APIKey, keyID string, req *dto.UpdateAPIKeyRequest) error {
	if !actor.HasScope(apikey.ScopeAdmin) && actor.KeyID != keyID {
		return fmt.Errorf("%w: admin scope or key ownership required", ierr.ErrForbidden)
	}

	upd := apikey.Update{
		Name:               req.Name,
		Description:        req.Description,
		Scopes:             toScopes(req.Scopes),
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerHour:   req.RateLimitPerHour,
		IsActive:           req.IsActive,
	}

	if req.MailCredentials != nil {
		encrypted, err := s.cipher.Encrypt(req.MailCredentials.Password)
		if err != nil {
			s.logger.Error("Failed to encrypt mail credentials", zap.String("key_id", keyID), zap.Error(err))
			return fmt.Errorf("%w: credential encryption failed", ierr.ErrInternalServer)
		}
		upd.MailCredentials = &apikey.MailCredentials{
			Address:           req.MailCredentials.Address,
			EncryptedPassword: encrypted,
			SMTPHost:          req.MailCredentials.SMTPHost,
			SMTPPort:          req.MailCredentials.SMTPPort,
			IMAPHost:          req.MailCredentials.IMAPHost,
			IMAPPort:          req.MailCredentials.IMAPPort,
		}
	}

	if err := s.repo.UpdateFields(ctx, keyID, upd); err != nil {
		s.logger.Error("Failed to update api key via repository", zap.String("key_id", keyID), zap.Error(err))
		return err
	}

	s.logger.Info("API key updated", zap.String("key_id", keyID), zap.String("actor", actor.KeyID))
	return nil
}

func (s *APIKeyService) Delete(ctx context.Context, keyID string) error {
	if err := s.repo.Delete(ctx, keyID); err != nil {
		s.logger.Error("Failed to delete api key via repository", zap.String("key_id", keyID), zap.Error(err))
		return err
	}
	s.logger.Info("API key deleted", zap.String("key_id", keyID))
	return nil
}

func toScopes(in []string) []apikey.Scope {
	if in == nil {
		return nil
	}
	out := make([]apikey.Scope, len(in))
	for i, s := range in {
		out[i] = apikey.Scope(s)
	}
	return out
}

func fromScopes(in []apikey.Scope) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
