// Package gateway integrates with the World App gateway fronting this
// service. The gateway validates session tokens and forwards the
// verified player id in a header; this package enforces that contract
// and makes the caller identity available to handlers.
package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blinkbattle/internal/config"
)

const (
	// UserHeader carries the gateway-verified player id.
	UserHeader = "X-User-ID"

	// WalletHeader carries the player's verified wallet address.
	WalletHeader = "X-Wallet-Address"
)

// RequireBearerMiddleware rejects API calls without a bearer token.
// Token validation itself happens at the gateway; this guard only
// keeps direct unauthenticated hits off the API surface.
func RequireBearerMiddleware(cfg config.GatewayConfig) gin.HandlerFunc {
	requireUser := cfg.RequireUserHeader

	return func(c *gin.Context) {
		if cfg.AuthDisabled {
			c.Next()
			return
		}
		p := c.Request.URL.Path
		// Keep infra endpoints open.
		if p == "/healthz" || p == "/readyz" {
			c.Next()
			return
		}
		if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/swagger") || p == "/docs" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if !strings.HasPrefix(auth, "Bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
				return
			}
			if requireUser && strings.TrimSpace(c.GetHeader(UserHeader)) == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserHeader})
				return
			}
		}
		c.Next()
	}
}

// UserFromGin returns the gateway-verified player id, empty when the
// request did not come through the gateway.
func UserFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.GetHeader(UserHeader))
}

// WalletFromGin returns the player's verified wallet address.
func WalletFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.GetHeader(WalletHeader))
}

// WriteAuditMiddleware logs every mutating API call with its caller,
// outcome and latency. Settlement disputes get replayed from these
// lines, so they are structured rather than free text.
func WriteAuditMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("user_id", UserFromGin(c)),
		}
		switch {
		case status >= 500:
			logger.Error("api write", fields...)
		case status >= 400:
			logger.Warn("api write", fields...)
		default:
			logger.Info("api write", fields...)
		}
	}
}
