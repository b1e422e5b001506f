package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"github.com/makkenzo/email-gateway-api/internal/metrics"
	"github.com/makkenzo/email-gateway-api/internal/util"
	"go.uber.org/zap"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	identityContextKey  = "apiKeyIdentity"
)

// BearerAuthMiddleware resolves the `Bearer keyId:rawSecret` credential
// against the key store. Every failure cause is attached as its precise
// sentinel for logging and auditing; the error middleware collapses all
// of them to one generic 401.
func BearerAuthMiddleware(repo apikey.Repository, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("BearerAuthMiddleware")
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authorizationHeader)
		if authHeader == "" {
			log.Debug("Authorization header is missing")
			abortAuth(c, ierr.ErrMissingAuthHeader)
			return
		}

		if !strings.HasPrefix(authHeader, bearerPrefix) {
			log.Debug("Authorization header does not use the bearer scheme")
			abortAuth(c, ierr.ErrMalformedScheme)
			return
		}

		credential := strings.TrimPrefix(authHeader, bearerPrefix)

		// Split on the first colon only; the secret may itself contain colons.
		parts := strings.SplitN(credential, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			log.Debug("Bearer credential is not keyId:secret shaped")
			abortAuth(c, ierr.ErrMalformedCred)
			return
		}
		keyID, rawSecret := parts[0], parts[1]

		key, err := repo.FindByKeyID(c.Request.Context(), keyID)
		if err != nil {
			log.Warn("API key lookup failed", zap.String("key_id", keyID), zap.Error(err))
			abortAuth(c, err)
			return
		}

		if !util.VerifySecret(rawSecret, key.SecretHash) {
			log.Warn("API key secret mismatch", zap.String("key_id", keyID))
			abortAuth(c, ierr.ErrSecretMismatch)
			return
		}

		if !key.IsActive {
			log.Warn("Inactive API key presented", zap.String("key_id", keyID))
			abortAuth(c, ierr.ErrAPIKeyInactive)
			return
		}

		// Best effort: a failed persist of last_used_at must not fail the
		// request.
		go func(repo apikey.Repository, keyID string, l *zap.Logger) {
			touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.UpdateLastUsed(touchCtx, keyID, time.Now().UTC()); err != nil {
				l.Error("Failed to update api key last used time", zap.String("key_id", keyID), zap.Error(err))
			}
		}(repo, keyID, log)

		log.Debug("API key authenticated", zap.String("key_id", keyID))
		c.Set(identityContextKey, key)
		c.Next()
	}
}

func abortAuth(c *gin.Context, cause error) {
	metrics.AuthFailuresTotal.Inc()
	_ = c.Error(cause)
	c.Abort()
}

// RequireScope gates a route group on scope membership. Must run after
// BearerAuthMiddleware.
func RequireScope(required apikey.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetIdentity(c)
		if key == nil {
			_ = c.Error(ierr.ErrUnauthorized)
			c.Abort()
			return
		}
		if !key.HasScope(required) {
			_ = c.Error(fmt.Errorf("%w: %s scope required", ierr.ErrInsufficientScope, required))
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetIdentity returns the authenticated API key, or nil on exempt or
// unauthenticated requests.
func GetIdentity(c *gin.Context) *apikey.APIKey {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return nil
	}
	key, ok := value.(*apikey.APIKey)
	if !ok {
		return nil
	}
	return key
}
