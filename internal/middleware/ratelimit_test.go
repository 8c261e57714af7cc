package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testRateLimiterConfig(r rate.Limit, burst int) RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            r,
		Burst:           burst,
		CleanupInterval: time.Minute,
	}
}

// TestRateLimiter_AllowsWithinBurst はバースト内のリクエストが通ることを検証する。
func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 3))
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/shows", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("%d回目のstatus = %d, want %d", i+1, w.Result().StatusCode, http.StatusOK)
		}
	}
}

// TestRateLimiter_Returns429BeyondBurst はバースト超過で429が返ることを検証する。
func TestRateLimiter_Returns429BeyondBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(0.001, 1))
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/shows", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	req = httptest.NewRequest(http.MethodGet, "/api/shows", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーが設定されていない")
	}
}

// TestRateLimiter_IsolatesClients はクライアントIPごとに独立して制限されることを検証する。
func TestRateLimiter_IsolatesClients(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(0.001, 1))
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 1つ目のクライアントがバーストを使い切る
	req := httptest.NewRequest(http.MethodGet, "/api/shows", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// 別のクライアントは影響を受けない
	req = httptest.NewRequest(http.MethodGet, "/api/shows", nil)
	req.RemoteAddr = "192.0.2.2:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("リミッターエントリ数 = %d, want 2", rl.LimiterCount())
	}
}

// TestClientIP_PrefersForwardedFor はX-Forwarded-Forの先頭エントリが使われることを検証する。
func TestClientIP_PrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("clientIP = %q, want %q", got, "203.0.113.7")
	}
}

// TestClientIP_FallsBackToRemoteAddr はヘッダーがない場合にRemoteAddrが使われることを検証する。
func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.5:443"

	if got := clientIP(req); got != "192.0.2.5" {
		t.Errorf("clientIP = %q, want %q", got, "192.0.2.5")
	}
}

// TestRateLimiter_CleanupRemovesIdleEntries はアイドルエントリが削除されることを検証する。
func TestRateLimiter_CleanupRemovesIdleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            1,
		Burst:           1,
		CleanupInterval: time.Millisecond,
	})
	defer rl.Stop()

	rl.getOrCreateLimiter("192.0.2.1")

	// lastAccessを十分過去に巻き戻してからクリーンアップを実行
	rl.mu.Lock()
	rl.limiters["192.0.2.1"].lastAccess = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.cleanup()

	if rl.LimiterCount() != 0 {
		t.Errorf("リミッターエントリ数 = %d, want 0", rl.LimiterCount())
	}
}
