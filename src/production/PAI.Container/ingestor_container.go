package container

import (
	"context"
	"fmt"

	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
)

// IngestorContainer manages dependencies for the MQTT Ingestor service
type IngestorContainer struct {
	config *config.IngestorConfig
	logger *logger.Logger
}

// NewIngestorContainer creates a new container for the MQTT Ingestor service
func NewIngestorContainer() (*IngestorContainer, error) {
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestor configuration: %w", err)
	}

	return &IngestorContainer{
		config: cfg,
		logger: logger.NewLogger(&cfg.Logging).WithService("plantai-ingestor"),
	}, nil
}

// GetConfig returns the ingestor configuration
func (c *IngestorContainer) GetConfig() *config.IngestorConfig {
	return c.config
}

// GetLogger returns the logger
func (c *IngestorContainer) GetLogger() *logger.Logger {
	return c.logger
}

// Shutdown gracefully shuts down the ingestor container
func (c *IngestorContainer) Shutdown(ctx context.Context) error {
	c.logger.Info().Msg("Ingestor container shutdown complete")
	return nil
}
