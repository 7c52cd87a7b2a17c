package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/health"
)

// HealthController handles health and metrics requests
type HealthController struct {
	checker *health.HealthChecker
}

// NewHealthController creates a new health controller
func NewHealthController(checker *health.HealthChecker) *HealthController {
	return &HealthController{checker: checker}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	status, healthy := c.checker.GetHealthStatus(checkCtx)
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}
