package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", okHandler)
	return router
}

func hit(router *gin.Engine, ip string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = ip + ":12345"
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_AllowsNormalRequests(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	defer rl.Close()

	if code := hit(limitedRouter(rl), "192.168.1.1"); code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, code)
	}
}

func TestRateLimit_BlocksExcessiveRequests(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()
	router := limitedRouter(rl)

	var lastCode int
	for i := 0; i < 5; i++ {
		lastCode = hit(router, "10.0.0.1")
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("expected status %d after burst exceeded, got %d", http.StatusTooManyRequests, lastCode)
	}
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()
	router := limitedRouter(rl)

	if code := hit(router, "10.0.0.1"); code != http.StatusOK {
		t.Errorf("IP1 first request: expected %d, got %d", http.StatusOK, code)
	}
	if code := hit(router, "10.0.0.2"); code != http.StatusOK {
		t.Errorf("IP2 first request: expected %d, got %d", http.StatusOK, code)
	}
}

func TestRateLimit_Evict(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()

	rl.getLimiter("10.0.0.9")
	rl.mu.Lock()
	rl.limiters["10.0.0.9"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.evict(5 * time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["10.0.0.9"]; ok {
		t.Error("idle limiter should be evicted")
	}
}
