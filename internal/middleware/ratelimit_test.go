package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"golang.org/x/time/rate"
)

func newTestRateLimiter(t *testing.T, generalBurst, authBurst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		AuthRate:        1,
		AuthBurst:       authBurst,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(method, remoteAddr string, user *model.User) *http.Request {
	req := httptest.NewRequest(method, "/", nil)
	req.RemoteAddr = remoteAddr
	if user != nil {
		req = withUser(req, user)
	}
	return req
}

// --- GeneralMiddleware のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := newTestRateLimiter(t, 5, 10)
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(http.MethodGet, "10.0.0.1:1234", nil))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := newTestRateLimiter(t, 2, 10)
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodGet, "10.0.0.1:1234", nil))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodGet, "10.0.0.1:1234", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive integer", w.Header().Get("Retry-After"))
	}
}

func TestRateLimitMiddleware_KeysAreIndependent(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 10)
	handler := rl.GeneralMiddleware()(okHandler())

	requests := []*http.Request{
		requestFrom(http.MethodGet, "10.0.0.1:1", nil),
		requestFrom(http.MethodGet, "10.0.0.2:1", nil),
		requestFrom(http.MethodGet, "10.0.0.1:1", &model.User{ID: 1}),
		requestFrom(http.MethodGet, "10.0.0.1:1", &model.User{ID: 2}),
	}
	for i, req := range requests {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	if got := rl.GeneralLimiterCount(); got != 4 {
		t.Errorf("GeneralLimiterCount() = %d, want 4", got)
	}
}

func TestRateLimitMiddleware_SameIPDifferentPortsShareLimit(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 10)
	handler := rl.GeneralMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodGet, "10.0.0.1:1111", nil))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodGet, "10.0.0.1:2222", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

// --- AuthMiddleware のテスト ---

func TestAuthRateLimit_OnlyLimitsPOST(t *testing.T) {
	rl := newTestRateLimiter(t, 100, 1)
	handler := rl.AuthMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(http.MethodGet, "10.0.0.1:1", nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodPost, "10.0.0.1:1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("first POST: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodPost, "10.0.0.1:1", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second POST: status = %d, want 429", w.Code)
	}
	if got := rl.AuthLimiterCount(); got != 1 {
		t.Errorf("AuthLimiterCount() = %d, want 1", got)
	}
}

// --- 設定とクリーンアップのテスト ---

func TestNewRateLimiterConfig_PerMinute(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 10)

	if cfg.GeneralRate != rate.Limit(2) {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 || cfg.AuthBurst != 10 {
		t.Errorf("bursts = %d/%d, want 120/10", cfg.GeneralBurst, cfg.AuthBurst)
	}
	if cfg.CleanupInterval <= 0 {
		t.Error("CleanupInterval should be positive")
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, 5, 5)
	handler := rl.GeneralMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodGet, "10.0.0.1:1", nil))

	rl.general.evictIdle(time.Now().Add(time.Hour), time.Minute)

	if got := rl.GeneralLimiterCount(); got != 0 {
		t.Errorf("GeneralLimiterCount() = %d, want 0 after eviction", got)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(NewRateLimiterConfig(60, 60))
	rl.Stop()
	rl.Stop()
}
