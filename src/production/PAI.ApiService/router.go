package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/controllers"
	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/health"
	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/images"
	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	metrics "gitlab.com/plantai/plantai.server/src/production/PAI.Metrics"
)

// routerDeps is everything the HTTP layer needs
type routerDeps struct {
	config     *config.Config
	logger     *logger.Logger
	sensor     controllers.SensorService
	images     *images.Service
	identifier controllers.Identifier
	health     *health.HealthChecker
}

func newRouter(d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(logger.RequestLogger(d.logger))
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())

	// Multipart bodies above this spill to disk; the size limit itself is enforced by the upload service
	router.MaxMultipartMemory = d.config.Upload.MaxBytes

	corsConfig := cors.Config{
		AllowOrigins:     d.config.CORS.AllowedOrigins,
		AllowMethods:     d.config.CORS.AllowedMethods,
		AllowHeaders:     d.config.CORS.AllowedHeaders,
		ExposeHeaders:    d.config.CORS.ExposedHeaders,
		AllowCredentials: d.config.CORS.AllowCredentials,
		MaxAge:           time.Duration(d.config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	sensorController := controllers.NewSensorController(d.sensor, d.logger)
	uploadController := controllers.NewUploadController(d.images, d.logger)
	identifyController := controllers.NewIdentifyController(d.identifier, d.images, d.logger)
	healthController := controllers.NewHealthController(d.health)
	internalController := controllers.NewInternalController(sensorController, d.config.InternalAPISecret)
	homeController := controllers.NewHomeController("PlantAI Sensor Advisory API")

	homeController.RegisterRoutes(router)
	sensorController.RegisterRoutes(router)
	uploadController.RegisterRoutes(router)
	identifyController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)
	internalController.RegisterRoutes(router)

	return router
}
