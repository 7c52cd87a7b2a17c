package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	container "gitlab.com/plantai/plantai.server/src/production/PAI.Container"
	"gitlab.com/plantai/plantai.server/src/production/PAI.IngestorService/client"
	paiingestor "gitlab.com/plantai/plantai.server/src/production/PAI.IngestorService/ingestor"
)

func main() {
	ctr, err := container.NewIngestorContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize container: %v\n", err)
		os.Exit(1)
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info().Msg("Starting MQTT Ingestor Service")

	config := ctr.GetConfig()
	apiClient := client.NewAPIClient(config.ApiServiceURL, config.InternalAPISecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ing := paiingestor.New(*config, apiClient, logger)
	if err := ing.Start(ctx); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT ingestor")
	}
	defer ing.Stop()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:    ":" + config.Server.Port,
		Handler: newHealthRouter(ing, apiClient),
	}
	go func() {
		logger.Info().Str("port", config.Server.Port).Msg("Health server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start health server")
		}
	}()

	logger.Info().Msg("MQTT ingestor running... press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Health server forced to shutdown")
	}
}

type connectionChecker interface {
	IsConnected() bool
}

type apiChecker interface {
	Health(ctx context.Context) error
	GetCircuitBreakerStatus() map[string]interface{}
}

// newHealthRouter serves /health and /metrics for the ingestor
func newHealthRouter(ing connectionChecker, api apiChecker) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		mqttStatus := "disconnected"
		if ing.IsConnected() {
			mqttStatus = "connected"
		}

		apiStatus := "disconnected"
		if err := api.Health(ctx); err == nil {
			apiStatus = "connected"
		}

		status := "healthy"
		code := http.StatusOK
		if mqttStatus != "connected" || apiStatus != "connected" {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services": gin.H{
				"mqtt":        mqttStatus,
				"api_service": apiStatus,
			},
			"circuit_breaker": api.GetCircuitBreakerStatus(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}
