package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/handler/dto"
	"github.com/makkenzo/email-gateway-api/internal/ratelimit"
	"github.com/makkenzo/email-gateway-api/internal/storage/memstorage"
	"go.uber.org/zap"
)

func newRateLimitTestRouter(repo apikey.Repository, limiter *ratelimit.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandlerMiddleware(zap.NewNop()))

	group := r.Group("/api/v1")
	group.Use(BearerAuthMiddleware(repo, zap.NewNop()))
	group.Use(RateLimitMiddleware(limiter, zap.NewNop()))
	group.GET("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRateLimitMiddleware_HeadersAndDenial(t *testing.T) {
	t.Parallel()

	repo := memstorage.NewAPIKeyRepositoryMock()
	keyID, rawSecret := seedKey(t, repo, []apikey.Scope{apikey.ScopeRead}, true)

	// Tighten the seeded key's minute budget to 2.
	limit := 2
	if err := repo.UpdateFields(t.Context(), keyID, apikey.Update{RateLimitPerMinute: &limit}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	limiter := ratelimit.NewLimiter(zap.NewNop())
	router := newRateLimitTestRouter(repo, limiter)

	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/probe", nil)
		req.Header.Set("Authorization", "Bearer "+keyID+":"+rawSecret)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := request()
	if first.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", first.Code)
	}
	if got := first.Header().Get("X-RateLimit-Limit-Minute"); got != "2" {
		t.Errorf("X-RateLimit-Limit-Minute = %q, want \"2\"", got)
	}
	if got := first.Header().Get("X-RateLimit-Remaining-Minute"); got != "1" {
		t.Errorf("X-RateLimit-Remaining-Minute = %q, want \"1\"", got)
	}
	if got := first.Header().Get("X-RateLimit-Limit-Hour"); got != "1000" {
		t.Errorf("X-RateLimit-Limit-Hour = %q, want \"1000\"", got)
	}

	second := request()
	if second.Code != http.StatusOK {
		t.Fatalf("second request: status = %d, want 200", second.Code)
	}
	if got := second.Header().Get("X-RateLimit-Remaining-Minute"); got != "0" {
		t.Errorf("X-RateLimit-Remaining-Minute = %q, want \"0\"", got)
	}

	third := request()
	if third.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", third.Code)
	}
	if got := third.Header().Get("X-RateLimit-Remaining-Minute"); got != "0" {
		t.Errorf("denied response X-RateLimit-Remaining-Minute = %q, want \"0\"", got)
	}

	var body dto.RateLimitExceededResponse
	if err := json.Unmarshal(third.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal 429 body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("429 code = %q, want RATE_LIMIT_EXCEEDED", body.Code)
	}
	if body.RemainingMinute != 0 {
		t.Errorf("429 remaining_minute = %d, want 0", body.RemainingMinute)
	}
	if body.RemainingHour != 998 {
		t.Errorf("429 remaining_hour = %d, want 998 (denial consumes no hour quota)", body.RemainingHour)
	}
}

func TestRateLimitMiddleware_IndependentKeys(t *testing.T) {
	t.Parallel()

	repo := memstorage.NewAPIKeyRepositoryMock()
	firstID, firstSecret := seedKey(t, repo, []apikey.Scope{apikey.ScopeRead}, true)
	secondID, secondSecret := seedKey(t, repo, []apikey.Scope{apikey.ScopeRead}, true)

	limit := 1
	for _, id := range []string{firstID, secondID} {
		if err := repo.UpdateFields(t.Context(), id, apikey.Update{RateLimitPerMinute: &limit}); err != nil {
			t.Fatalf("UpdateFields: %v", err)
		}
	}

	limiter := ratelimit.NewLimiter(zap.NewNop())
	router := newRateLimitTestRouter(repo, limiter)

	request := func(keyID, secret string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/probe", nil)
		req.Header.Set("Authorization", "Bearer "+keyID+":"+secret)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := request(firstID, firstSecret); code != http.StatusOK {
		t.Fatalf("first key: status = %d, want 200", code)
	}
	if code := request(firstID, firstSecret); code != http.StatusTooManyRequests {
		t.Fatalf("first key second request: status = %d, want 429", code)
	}
	// The second key's budget is untouched by the first key's exhaustion.
	if code := request(secondID, secondSecret); code != http.StatusOK {
		t.Errorf("second key: status = %d, want 200", code)
	}
}
