package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/domain/audit"
	"go.uber.org/zap"
)

const auditAppendTimeout = 5 * time.Second

// AuditMiddleware appends one audit record per /api/ request after the
// response is final. Register it before the error middleware so the
// recorded status reflects the translated response. Append failures are
// logged and swallowed; auditing never fails a request.
func AuditMiddleware(repo audit.Repository, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuditMiddleware")
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Next()
			return
		}

		start := time.Now().UTC()
		c.Next()

		entry := &audit.Entry{
			Endpoint:  c.Request.URL.Path,
			Method:    c.Request.Method,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Status:    c.Writer.Status(),
			Timestamp: start,
		}
		if key := GetIdentity(c); key != nil {
			entry.APIKeyRef = key.ID
			entry.KeyID = key.KeyID
		}
		if last := c.Errors.Last(); last != nil {
			entry.ErrorMessage = last.Error()
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditAppendTimeout)
			defer cancel()
			if err := repo.Append(ctx, entry); err != nil {
				log.Error("Failed to append audit entry",
					zap.String("endpoint", entry.Endpoint),
					zap.Error(err),
				)
			}
		}()
	}
}
