package gateway_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"blinkbattle/internal/config"
	"blinkbattle/internal/gateway"
)

func newEngine(cfg config.GatewayConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(gateway.RequireBearerMiddleware(cfg))
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.POST("/api/v1/echo", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func TestBearerGuard(t *testing.T) {
	engine := newEngine(config.GatewayConfig{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/echo", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no bearer: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", nil)
	req.Header.Set("Authorization", "Bearer token")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("with bearer: status = %d, want 200", w.Code)
	}

	// Infra endpoints stay open.
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: status = %d, want 200", w.Code)
	}
}

func TestBearerGuardDisabled(t *testing.T) {
	engine := newEngine(config.GatewayConfig{AuthDisabled: true})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/echo", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("auth disabled: status = %d, want 200", w.Code)
	}
}

func TestBearerGuardRequiresUserHeader(t *testing.T) {
	engine := newEngine(config.GatewayConfig{RequireUserHeader: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing user header: status = %d, want 401", w.Code)
	}

	req.Header.Set(gateway.UserHeader, "u1")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("with user header: status = %d, want 200", w.Code)
	}
}
