package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/storage/memstorage"
	"github.com/makkenzo/email-gateway-api/internal/util"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthTestRouter(repo apikey.Repository) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandlerMiddleware(zap.NewNop()))

	group := r.Group("/api/v1")
	group.Use(BearerAuthMiddleware(repo, zap.NewNop()))
	group.GET("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"key_id": GetIdentity(c).KeyID})
	})
	group.GET("/admin-only", RequireScope(apikey.ScopeAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func seedKey(t *testing.T, repo *memstorage.APIKeyRepositoryMock, scopes []apikey.Scope, active bool) (keyID, rawSecret string) {
	t.Helper()

	keyID, rawSecret, secretHash, err := util.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	err = repo.Create(context.Background(), &apikey.APIKey{
		KeyID:              keyID,
		SecretHash:         secretHash,
		Name:               "test key",
		Scopes:             scopes,
		RateLimitPerMinute: 60,
		RateLimitPerHour:   1000,
		IsActive:           active,
	})
	if err != nil {
		t.Fatalf("seed key: %v", err)
	}
	return keyID, rawSecret
}

func doRequest(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/probe", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearerAuth_Success(t *testing.T) {
	t.Parallel()

	repo := memstorage.NewAPIKeyRepositoryMock()
	keyID, rawSecret := seedKey(t, repo, []apikey.Scope{apikey.ScopeRead}, true)
	router := newAuthTestRouter(repo)

	w := doRequest(router, "Bearer "+keyID+":"+rawSecret)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["key_id"] != keyID {
		t.Errorf("identity key_id = %q, want %q", body["key_id"], keyID)
	}
}

func TestBearerAuth_FailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	repo := memstorage.NewAPIKeyRepositoryMock()
	keyID, rawSecret := seedKey(t, repo, []apikey.Scope{apikey.ScopeRead}, true)
	inactiveID, inactiveSecret := seedKey(t, repo, []apikey.Scope{apikey.ScopeRead}, false)
	router := newAuthTestRouter(repo)

	cases := []struct {
		name          string
		authorization string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + keyID + ":" + rawSecret},
		{"no separator", "Bearer " + keyID + rawSecret},
		{"empty secret", "Bearer " + keyID + ":"},
		{"unknown key id", "Bearer nosuchkey:" + rawSecret},
		{"wrong secret", "Bearer " + keyID + ":wrong"},
		{"inactive key", "Bearer " + inactiveID + ":" + inactiveSecret},
	}

	var referenceBody string
	for _, tc := range cases {
		w := doRequest(router, tc.authorization)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.name, w.Code)
			continue
		}
		if referenceBody == "" {
			referenceBody = w.Body.String()
			continue
		}
		if w.Body.String() != referenceBody {
			t.Errorf("%s: body differs from other auth failures: %s vs %s",
				tc.name, w.Body.String(), referenceBody)
		}
	}
}

func TestBearerAuth_SecretWithColon(t *testing.T) {
	t.Parallel()

	repo := memstorage.NewAPIKeyRepositoryMock()
	keyID := "colonkey"
	rawSecret := "left:right:more"
	err := repo.Create(context.Background(), &apikey.APIKey{
		KeyID:      keyID,
		SecretHash: util.HashSecret(rawSecret),
		Name:       "colon secret",
		Scopes:     []apikey.Scope{apikey.ScopeRead},
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("seed key: %v", err)
	}
	router := newAuthTestRouter(repo)

	w := doRequest(router, "Bearer "+keyID+":"+rawSecret)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; secret after the first colon must be kept intact", w.Code)
	}
}

func TestBearerAuth_UpdatesLastUsed(t *testing.T) {
	t.Parallel()

	repo := memstorage.NewAPIKeyRepositoryMock()
	keyID, rawSecret := seedKey(t, repo, []apikey.Scope{apikey.ScopeRead}, true)
	router := newAuthTestRouter(repo)

	if w := doRequest(router, "Bearer "+keyID+":"+rawSecret); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// The update runs on a separate goroutine; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		key, err := repo.FindByKeyID(context.Background(), keyID)
		if err != nil {
			t.Fatalf("FindByKeyID: %v", err)
		}
		if key.LastUsedAt != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("last_used_at was never set after a successful request")
}

func TestRequireScope(t *testing.T) {
	t.Parallel()

	repo := memstorage.NewAPIKeyRepositoryMock()
	readID, readSecret := seedKey(t, repo, []apikey.Scope{apikey.ScopeRead}, true)
	adminID, adminSecret := seedKey(t, repo, []apikey.Scope{apikey.ScopeRead, apikey.ScopeAdmin}, true)
	router := newAuthTestRouter(repo)

	request := func(auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin-only", nil)
		req.Header.Set("Authorization", auth)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	if w := request("Bearer " + readID + ":" + readSecret); w.Code != http.StatusForbidden {
		t.Errorf("read-scoped key: status = %d, want 403", w.Code)
	}
	if w := request("Bearer " + adminID + ":" + adminSecret); w.Code != http.StatusOK {
		t.Errorf("admin-scoped key: status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
}
