package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/domain/audit"
	"github.com/makkenzo/email-gateway-api/internal/storage/memstorage"
	"go.uber.org/zap"
)

func newAuditTestRouter(keyRepo apikey.Repository, auditRepo audit.Repository) *gin.Engine {
	r := gin.New()
	r.Use(AuditMiddleware(auditRepo, zap.NewNop()))
	r.Use(ErrorHandlerMiddleware(zap.NewNop()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := r.Group("/api/v1")
	group.Use(BearerAuthMiddleware(keyRepo, zap.NewNop()))
	group.GET("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func waitForEntries(t *testing.T, repo *memstorage.AuditRepositoryMock, want int) []*audit.Entry {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := repo.Entries(); len(entries) >= want {
			return entries
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("audit log never reached %d entries", want)
	return nil
}

func TestAuditMiddleware_RecordsOutcome(t *testing.T) {
	t.Parallel()

	keyRepo := memstorage.NewAPIKeyRepositoryMock()
	auditRepo := memstorage.NewAuditRepositoryMock()
	keyID, rawSecret := seedKey(t, keyRepo, []apikey.Scope{apikey.ScopeRead}, true)
	router := newAuditTestRouter(keyRepo, auditRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/probe", nil)
	req.Header.Set("Authorization", "Bearer "+keyID+":"+rawSecret)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	entries := waitForEntries(t, auditRepo, 1)
	entry := entries[0]
	if entry.Status != http.StatusOK {
		t.Errorf("audited status = %d, want 200", entry.Status)
	}
	if entry.KeyID != keyID {
		t.Errorf("audited key_id = %q, want %q", entry.KeyID, keyID)
	}
	if entry.Endpoint != "/api/v1/probe" || entry.Method != http.MethodGet {
		t.Errorf("audited endpoint = %s %s, want GET /api/v1/probe", entry.Method, entry.Endpoint)
	}
}

func TestAuditMiddleware_RecordsAuthFailure(t *testing.T) {
	t.Parallel()

	keyRepo := memstorage.NewAPIKeyRepositoryMock()
	auditRepo := memstorage.NewAuditRepositoryMock()
	router := newAuditTestRouter(keyRepo, auditRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/probe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	entries := waitForEntries(t, auditRepo, 1)
	entry := entries[0]
	if entry.Status != http.StatusUnauthorized {
		t.Errorf("audited status = %d, want 401", entry.Status)
	}
	if entry.KeyID != "" {
		t.Errorf("audited key_id = %q, want empty for unauthenticated request", entry.KeyID)
	}
	if entry.ErrorMessage == "" {
		t.Error("audited entry carries no error message for a failed request")
	}
}

func TestAuditMiddleware_SkipsExemptPaths(t *testing.T) {
	t.Parallel()

	keyRepo := memstorage.NewAPIKeyRepositoryMock()
	auditRepo := memstorage.NewAuditRepositoryMock()
	router := newAuditTestRouter(keyRepo, auditRepo)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	time.Sleep(50 * time.Millisecond)
	if entries := auditRepo.Entries(); len(entries) != 0 {
		t.Errorf("exempt path produced %d audit entries, want 0", len(entries))
	}
}
