package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blinkbattle/internal/store"
)

// HealthHandler reports liveness and readiness. Readiness requires the
// database; the cache tier is reported but never blocks, the tiered
// store falls back in-process when the primary is down.
type HealthHandler struct {
	DB    *gorm.DB
	Cache store.Pinger
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

// @Summary Health check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Readiness check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	sqlDB, err := h.DB.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_error"})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	resp := gin.H{"status": "ready"}
	if h.Cache != nil {
		resp["cache"] = cacheStatus(c.Request.Context(), h.Cache)
	}
	c.JSON(http.StatusOK, resp)
}

func cacheStatus(ctx context.Context, p store.Pinger) string {
	if err := p.Ping(ctx); err != nil {
		return "degraded"
	}
	return "ok"
}
