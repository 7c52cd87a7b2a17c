package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/sensor"
	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const maxSensorBodyBytes = 1 << 20

// SensorService is the advisory pipeline as seen by the HTTP layer
type SensorService interface {
	Ingest(ctx context.Context, input map[string]any) (models.Readout, error)
	Latest(ctx context.Context) (models.Readout, error)
}

// SensorController handles sensor ingestion and latest-readout requests
type SensorController struct {
	service SensorService
	logger  *logger.Logger
}

// NewSensorController creates a new sensor controller
func NewSensorController(service SensorService, log *logger.Logger) *SensorController {
	return &SensorController{
		service: service,
		logger:  log.WithComponent("sensor_controller"),
	}
}

// RegisterRoutes registers the sensor routes with Gin
func (c *SensorController) RegisterRoutes(router *gin.Engine) {
	router.POST("/sensor-data", c.PostSensorData)
	router.GET("/response-body", c.GetResponseBody)
}

func (c *SensorController) PostSensorData(ctx *gin.Context) {
	input, ok := c.bindReading(ctx)
	if !ok {
		return
	}

	readout, err := c.service.Ingest(ctx.Request.Context(), input)
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":       true,
		"response_body": readout,
	})
}

func (c *SensorController) GetResponseBody(ctx *gin.Context) {
	readout, err := c.service.Latest(ctx.Request.Context())
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, readout)
}

// bindReading decodes a JSON object, keeping numbers as json.Number
func (c *SensorController) bindReading(ctx *gin.Context) (map[string]any, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxSensorBodyBytes))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_body",
			"message": "request body could not be read: " + err.Error(),
		})
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_body",
			"message": "No JSON data provided",
		})
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var input map[string]any
	if err := dec.Decode(&input); err != nil || input == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_body",
			"message": "request body must be a JSON object",
		})
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_body",
			"message": "request body must contain a single JSON object",
		})
		return nil, false
	}
	return input, true
}

func (c *SensorController) writeError(ctx *gin.Context, err error) {
	var verr *sensor.ValidationError
	var serr *interfaces.StorageError

	switch {
	case errors.As(err, &verr):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"kind":    verr.Kind,
			"fields":  verr.Fields,
			"message": verr.Error(),
		})
	case errors.Is(err, interfaces.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "no_data",
			"message": "no sensor data available yet",
		})
	case errors.As(err, &serr):
		c.logger.Error().Err(err).Str("backend", serr.Backend).Str("op", serr.Op).Msg("Reading store failure")
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "storage_error",
			"message": "the reading store is unavailable",
		})
	default:
		c.logger.Error().Err(err).Msg("Sensor request failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "the request could not be processed",
		})
	}
}
