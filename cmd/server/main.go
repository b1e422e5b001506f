package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/config"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/handler"
	"github.com/makkenzo/email-gateway-api/internal/handler/middleware"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"github.com/makkenzo/email-gateway-api/internal/mail"
	"github.com/makkenzo/email-gateway-api/internal/ratelimit"
	"github.com/makkenzo/email-gateway-api/internal/secrets"
	"github.com/makkenzo/email-gateway-api/internal/service"
	"github.com/makkenzo/email-gateway-api/internal/storage/postgres"
	"github.com/makkenzo/email-gateway-api/internal/storage/redis"
	"github.com/makkenzo/email-gateway-api/internal/worker"
	"github.com/makkenzo/email-gateway-api/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()

	sugarLogger.Info("Starting email gateway...")
	sugarLogger.Infof("Log level set to: %s", cfg.Log.Level)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	cipher, err := secrets.NewCipher(cfg.Crypto.EncryptionKey)
	if err != nil {
		sugarLogger.Fatalf("Failed to initialize credential cipher: %v", err)
	}

	apiKeyRepo := postgres.NewAPIKeyRepository(dbPool, appLogger)
	auditRepo := postgres.NewAuditRepository(dbPool, appLogger)

	limiter := ratelimit.NewLimiter(appLogger)
	go limiter.Run(appCtx, cfg.RateLimit.SweepInterval)

	mailGateway := mail.NewClient(appLogger)

	apiKeyService := service.NewAPIKeyService(apiKeyRepo, cipher, service.APIKeyDefaults{
		RateLimitPerMinute: cfg.RateLimit.DefaultPerMinute,
		RateLimitPerHour:   cfg.RateLimit.DefaultPerHour,
	}, appLogger)
	mailService := service.NewMailService(mailGateway, cipher, cfg.Mail, appLogger)

	healthHandler := handler.NewHealthHandler(dbPool, redisClient, version, appLogger)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeyService, appLogger)
	emailHandler := handler.NewEmailHandler(mailService, appLogger)

	authMiddleware := middleware.BearerAuthMiddleware(apiKeyRepo, appLogger)
	rateLimitMiddleware := middleware.RateLimitMiddleware(limiter, appLogger)
	auditMiddleware := middleware.AuditMiddleware(auditRepo, appLogger)
	errorMiddleware := middleware.ErrorHandlerMiddleware(appLogger)

	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logMsg := "Panic recovered"
		if err, ok := recovered.(string); ok {
			logMsg = fmt.Sprintf("%s: %s", logMsg, err)
		} else if err, ok := recovered.(error); ok {
			logMsg = fmt.Sprintf("%s: %v", logMsg, err)
		}
		appLogger.Error(logMsg, zap.Stack("stack"))

		_ = c.Error(ierr.ErrInternalServer)
		c.Abort()
	}))

	corsConfig := cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"X-RateLimit-Limit-Minute",
			"X-RateLimit-Limit-Hour",
			"X-RateLimit-Remaining-Minute",
			"X-RateLimit-Remaining-Hour",
			"X-Process-Time",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.TimingMiddleware())
	// Audit wraps the error translator so the recorded status is the one
	// the client actually received.
	router.Use(auditMiddleware)
	router.Use(errorMiddleware)

	router.GET("/", healthHandler.Root)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	apiV1.Use(authMiddleware, rateLimitMiddleware)
	{
		apiKeyRoutes := apiV1.Group("/api-keys")
		{
			apiKeyRoutes.GET("/me", apiKeyHandler.Me)

			apiKeyRoutes.POST("", middleware.RequireScope(apikey.ScopeAdmin), apiKeyHandler.Create)
			apiKeyRoutes.GET("", middleware.RequireScope(apikey.ScopeAdmin), apiKeyHandler.List)
			// Admin-or-self is decided in the service; any authenticated key
			// may attempt an update of its own record.
			apiKeyRoutes.PATCH("/:keyId", apiKeyHandler.Update)
			apiKeyRoutes.DELETE("/:keyId", middleware.RequireScope(apikey.ScopeAdmin), apiKeyHandler.Delete)
		}

		emailRoutes := apiV1.Group("/emails")
		{
			emailRoutes.POST("", middleware.RequireScope(apikey.ScopeWrite), emailHandler.Send)
			emailRoutes.GET("", middleware.RequireScope(apikey.ScopeRead), emailHandler.ListUnread)
			emailRoutes.POST("/:emailId/mark-read", middleware.RequireScope(apikey.ScopeWrite), emailHandler.MarkRead)
			emailRoutes.POST("/mark-read-batch", middleware.RequireScope(apikey.ScopeWrite), emailHandler.MarkReadBatch)
			emailRoutes.POST("/mark-unread-batch", middleware.RequireScope(apikey.ScopeWrite), emailHandler.MarkUnreadBatch)
		}
	}

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugarLogger.Errorf("HTTP server ListenAndServe error: %v", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugarLogger.Errorf("HTTP server graceful shutdown failed: %v", err)
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	workerErrChan, workerShutdown := worker.RunWorkers(cfg, auditRepo, appLogger)
	g.Go(func() error {
		select {
		case err := <-workerErrChan:
			return err
		case <-groupCtx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
			defer cancel()
			workerShutdown(shutdownCtx)
			return nil
		}
	})

	sugarLogger.Info("Email gateway started. Waiting for interrupt signal (Ctrl+C) or component error...")

	waitErr := g.Wait()

	sugarLogger.Info("Shutdown sequence finished.")

	if waitErr != nil {
		if errors.Is(waitErr, context.Canceled) {
			sugarLogger.Info("Shutdown reason: Context canceled (likely due to OS signal).")
		} else if errors.Is(waitErr, http.ErrServerClosed) {
			sugarLogger.Info("Shutdown reason: HTTP server closed normally.")
		} else {
			sugarLogger.Errorf("Application shutdown finished with unexpected error: %v", waitErr)
		}
	} else {
		sugarLogger.Info("Application shutdown successfully (all components finished without errors).")
	}

	sugarLogger.Info("Application exiting now.")
}
