// Command createapikey bootstraps the first admin key directly against
// the database, before the HTTP API has any key that could mint one.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/storage/postgres"
	"github.com/makkenzo/email-gateway-api/internal/util"
	"go.uber.org/zap"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	keyID, rawSecret, secretHash, err := util.GenerateKeyPair()
	if err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}

	fmt.Printf("Generated admin credential (SAVE THIS securely, the secret is not recoverable!):\n")
	fmt.Printf("  Authorization: Bearer %s:%s\n\n", keyID, rawSecret)

	logger, _ := zap.NewDevelopment()
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	repo := postgres.NewAPIKeyRepository(pool, logger)

	newKey := &apikey.APIKey{
		KeyID:              keyID,
		SecretHash:         secretHash,
		Name:               "bootstrap-admin",
		Description:        "Initial admin key created by createapikey",
		Scopes:             []apikey.Scope{apikey.ScopeRead, apikey.ScopeWrite, apikey.ScopeAdmin},
		RateLimitPerMinute: 60,
		RateLimitPerHour:   1000,
		IsActive:           true,
	}

	if err := repo.Create(context.Background(), newKey); err != nil {
		log.Fatalf("Failed to save API key to database: %v", err)
	}

	fmt.Printf("Admin API key saved to database with key id: %s\n", keyID)
}
