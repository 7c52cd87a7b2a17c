package controllers

import (
	"github.com/gin-gonic/gin"

	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/middleware"
)

// InternalController handles internal API endpoints for service-to-service communication
type InternalController struct {
	sensor *SensorController
	secret string
}

// NewInternalController creates a new internal controller
func NewInternalController(sensor *SensorController, secret string) *InternalController {
	return &InternalController{sensor: sensor, secret: secret}
}

// RegisterRoutes registers the internal routes with Gin
func (c *InternalController) RegisterRoutes(router *gin.Engine) {
	internal := router.Group("/internal")
	internal.Use(middleware.ServiceAuthMiddleware(c.secret))
	{
		internal.POST("/sensor-data", c.sensor.PostSensorData)
	}
}
