package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Blink Battle Settlement Service

This service is accessed via the World App gateway, which validates
session tokens and forwards the verified player identity in X-User-ID.

## Auth

All /api/* routes require a Bearer token (validated by the gateway).
Health endpoints are public.

## Notable Routes

- GET  /healthz
- GET  /readyz
- GET  /swagger/index.html
- POST /api/v1/matches
- POST /api/v1/matches/:id/ready
- POST /api/v1/matches/:id/stake
- POST /api/v1/matches/:id/stake/confirm
- POST /api/v1/matches/:id/tap
- GET  /api/v1/matches/:id
- GET  /api/v1/matches/:id/ws
- POST /api/v1/matches/:id/claim
- POST /api/v1/payments
- POST /api/v1/payments/:reference/confirm
- GET  /api/v1/payments/:reference
- POST /api/v1/payments/:reference/refund
- GET  /api/v1/deposits/orphaned
- POST /api/v1/deposits/:reference/claim
`)
	})
}
