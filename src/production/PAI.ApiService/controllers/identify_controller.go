package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/identify"
	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/images"
	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
)

// Identifier answers questions about an uploaded plant image
type Identifier interface {
	Configured() bool
	Identify(ctx context.Context, imagePath, prompt string) (string, error)
}

// IdentifyController forwards identification requests for uploaded images
type IdentifyController struct {
	identifier Identifier
	images     *images.Service
	logger     *logger.Logger
}

// NewIdentifyController creates a new identify controller
func NewIdentifyController(identifier Identifier, svc *images.Service, log *logger.Logger) *IdentifyController {
	return &IdentifyController{
		identifier: identifier,
		images:     svc,
		logger:     log.WithComponent("identify_controller"),
	}
}

// IdentifyRequest names the image by id or by stored path
type IdentifyRequest struct {
	ImageID   string `json:"image_id"`
	ImagePath string `json:"image_path"`
	Prompt    string `json:"prompt"`
}

// RegisterRoutes registers the identify routes with Gin
func (c *IdentifyController) RegisterRoutes(router *gin.Engine) {
	router.POST("/identify", c.Identify)
}

func (c *IdentifyController) Identify(ctx *gin.Context) {
	if !c.identifier.Configured() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "identification_unavailable",
			"message": identify.ErrNotConfigured.Error(),
		})
		return
	}

	var req IdentifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.ImageID == "" && req.ImagePath == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "image_id or image_path is required"})
		return
	}

	path, err := c.images.ResolvePath(ctx.Request.Context(), req.ImageID, req.ImagePath)
	if errors.Is(err, images.ErrUnknownImage) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to resolve image")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error"})
		return
	}

	text, err := c.identifier.Identify(ctx.Request.Context(), path, req.Prompt)
	if err != nil {
		c.logger.Warn().Err(err).Str("image_path", path).Msg("Identification failed")
		ctx.JSON(http.StatusBadGateway, gin.H{
			"error":   "identification_failed",
			"message": err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":    true,
		"image_path": path,
		"text":       text,
	})
}
