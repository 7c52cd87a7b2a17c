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

	container "gitlab.com/plantai/plantai.server/src/production/PAI.Container"
	tracing "gitlab.com/plantai/plantai.server/src/production/PAI.Tracing"
)

func main() {
	ctr, err := container.NewApiContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize container: %v\n", err)
		os.Exit(1)
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	logger.Info().Str("storage", config.Storage.Driver).Str("publisher", config.Publisher.Driver).Msg("Starting API Service")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, config.Tracing)
	if err != nil {
		logger.FatalWithError(err, "Failed to initialize tracing")
	}
	ctr.AddCleanupFunc(shutdownTracer)

	sensorService, err := ctr.GetSensorService(ctx)
	if err != nil {
		logger.FatalWithError(err, "Failed to initialize sensor pipeline")
	}
	imageService, err := ctr.GetImageService()
	if err != nil {
		logger.FatalWithError(err, "Failed to initialize image uploads")
	}

	router := newRouter(routerDeps{
		config:     config,
		logger:     logger,
		sensor:     sensorService,
		images:     imageService,
		identifier: ctr.GetIdentifier(),
		health:     ctr.GetHealthChecker(),
	})

	port := config.Server.Port

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Str("port", port).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info().Msg("API service running... press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
