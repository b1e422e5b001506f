package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
)

type CreateAPIKeyRequest struct {
	Name               string   `json:"name" binding:"required,min=1,max=100"`
	Description        string   `json:"description" binding:"max=500"`
	Scopes             []string `json:"scopes" binding:"omitempty,dive,oneof=read write admin"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute" binding:"omitempty,gte=1,lte=1000"`
	RateLimitPerHour   int      `json:"rate_limit_per_hour" binding:"omitempty,gte=1,lte=10000"`
}

// CreateAPIKeyResponse is the only place the raw secret ever appears.
type CreateAPIKeyResponse struct {
	KeyID              string    `json:"key_id"`
	SecretKey          string    `json:"secret_key"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Scopes             []string  `json:"scopes"`
	RateLimitPerMinute int       `json:"rate_limit_per_minute"`
	RateLimitPerHour   int       `json:"rate_limit_per_hour"`
	CreatedAt          time.Time `json:"created_at"`
}

type APIKeyResponse struct {
	ID                 uuid.UUID  `json:"id"`
	KeyID              string     `json:"key_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Scopes             []string   `json:"scopes"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute"`
	RateLimitPerHour   int        `json:"rate_limit_per_hour"`
	IsActive           bool       `json:"is_active"`
	HasMailCredentials bool       `json:"has_mail_credentials"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
}

type MailCredentialsRequest struct {
	Address  string `json:"address" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	SMTPHost string `json:"smtp_host" binding:"required,hostname"`
	SMTPPort int    `json:"smtp_port" binding:"required,gte=1,lte=65535"`
	IMAPHost string `json:"imap_host" binding:"required,hostname"`
	IMAPPort int    `json:"imap_port" binding:"required,gte=1,lte=65535"`
}

type UpdateAPIKeyRequest struct {
	Name               *string                 `json:"name" binding:"omitempty,min=1,max=100"`
	Description        *string                 `json:"description" binding:"omitempty,max=500"`
	Scopes             []string                `json:"scopes" binding:"omitempty,dive,oneof=read write admin"`
	RateLimitPerMinute *int                    `json:"rate_limit_per_minute" binding:"omitempty,gte=1,lte=1000"`
	RateLimitPerHour   *int                    `json:"rate_limit_per_hour" binding:"omitempty,gte=1,lte=10000"`
	IsActive           *bool                   `json:"is_active"`
	MailCredentials    *MailCredentialsRequest `json:"mail_credentials"`
}

// NewAPIKeyResponse maps a domain record to its public representation.
// Hashes and encrypted credentials never leave the service.
func NewAPIKeyResponse(key *apikey.APIKey) *APIKeyResponse {
	scopes := make([]string, len(key.Scopes))
	for i, s := range key.Scopes {
		scopes[i] = string(s)
	}
	return &APIKeyResponse{
		ID:                 key.ID,
		KeyID:              key.KeyID,
		Name:               key.Name,
		Description:        key.Description,
		Scopes:             scopes,
		RateLimitPerMinute: key.RateLimitPerMinute,
		RateLimitPerHour:   key.RateLimitPerHour,
		IsActive:           key.IsActive,
		HasMailCredentials: key.MailCredentials != nil,
		CreatedAt:          key.CreatedAt,
		UpdatedAt:          key.UpdatedAt,
		LastUsedAt:         key.LastUsedAt,
	}
}
