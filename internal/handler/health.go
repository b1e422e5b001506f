package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type HealthHandler struct {
	db      *pgxpool.Pool
	redis   *redis.Client
	started time.Time
	version string
	logger  *zap.Logger
}

func NewHealthHandler(db *pgxpool.Pool, redis *redis.Client, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		started: time.Now(),
		version: version,
		logger:  logger,
	}
}

// Root is the unauthenticated service banner.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "email-gateway-api",
		"version": h.version,
		"status":  "running",
	})
}

func (h *HealthHandler) Check(c *gin.Context) {
	dbStatus := "ok"
	if err := h.db.Ping(c.Request.Context()); err != nil {
		dbStatus = "error"
		h.logger.Error("Health check: PostgreSQL ping failed", zap.Error(err))
	}

	redisStatus := "ok"
	if _, err := h.redis.Ping(c.Request.Context()).Result(); err != nil {
		redisStatus = "error"
		h.logger.Error("Health check: Redis ping failed", zap.Error(err))
	}

	body := gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"dependencies": gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	}

	if dbStatus == "error" || redisStatus == "error" {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}
