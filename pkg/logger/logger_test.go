package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGinLogger_SetsRequestID(t *testing.T) {
	router := gin.New()
	router.Use(GinLogger())
	router.GET("/ping", func(c *gin.Context) {
		if c.GetString("request_id") == "" {
			t.Error("request_id should be set before the handler runs")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ping", nil)
	router.ServeHTTP(w, req)

	if w.Header().Get(RequestIDHeader) == "" {
		t.Errorf("%s header should be set", RequestIDHeader)
	}
}

func TestGinLogger_KeepsIncomingRequestID(t *testing.T) {
	router := gin.New()
	router.Use(GinLogger())
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	router.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, expected %q", got, "abc-123")
	}
}

func TestGinRecovery_Returns500(t *testing.T) {
	router := gin.New()
	router.Use(GinRecovery())
	router.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/boom", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestInit_InvalidLevelFallsBackToInfo(t *testing.T) {
	Init("nonsense", "json")
	defer Init("info", "")

	if got := Get().GetLevel().String(); got != "info" {
		t.Errorf("level = %q, expected %q", got, "info")
	}
}
