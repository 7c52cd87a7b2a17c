package controllers

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/images"
	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

// UploadController handles plant image uploads
type UploadController struct {
	images *images.Service
	logger *logger.Logger
}

// NewUploadController creates a new upload controller
func NewUploadController(svc *images.Service, log *logger.Logger) *UploadController {
	return &UploadController{
		images: svc,
		logger: log.WithComponent("upload_controller"),
	}
}

// RegisterRoutes registers the upload routes with Gin
func (c *UploadController) RegisterRoutes(router *gin.Engine) {
	router.POST("/upload", c.Upload)
	router.GET("/images", c.ListImages)
	router.GET("/images/:id", c.GetImage)
}

func (c *UploadController) Upload(ctx *gin.Context) {
	fh, err := ctx.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		// A file input submitted with no file arrives as a plain form value
		if _, present := ctx.GetPostForm("image"); present {
			c.writeUploadError(ctx, images.ErrNoFilename)
			return
		}
		c.writeUploadError(ctx, images.ErrNoFile)
		return
	}
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart request: " + err.Error()})
		return
	}

	meta, err := c.images.Save(ctx.Request.Context(), fh)
	if err != nil {
		c.writeUploadError(ctx, err)
		return
	}

	c.logger.Info().Str("image_id", meta.ID).Int64("file_size", meta.FileSize).Msg("Image uploaded")
	ctx.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           "Image uploaded successfully",
		"image_id":          meta.ID,
		"filename":          filepath.Base(meta.StoredPath),
		"original_filename": meta.OriginalFilename,
		"file_size":         meta.FileSize,
		"upload_timestamp":  meta.UploadTimestamp,
	})
}

func (c *UploadController) ListImages(ctx *gin.Context) {
	all, err := c.images.List(ctx.Request.Context())
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to list images")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"images": all,
		"count":  len(all),
	})
}

func (c *UploadController) GetImage(ctx *gin.Context) {
	meta, err := c.images.Get(ctx.Request.Context(), ctx.Param("id"))
	if errors.Is(err, interfaces.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to get image")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error"})
		return
	}
	ctx.JSON(http.StatusOK, meta)
}

func (c *UploadController) writeUploadError(ctx *gin.Context, err error) {
	var typeErr *images.UnsupportedTypeError
	var sizeErr *images.TooLargeError

	switch {
	case errors.Is(err, images.ErrNoFile), errors.Is(err, images.ErrNoFilename):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &typeErr):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":         err.Error(),
			"allowed_types": images.AllowedTypes(),
		})
	case errors.As(err, &sizeErr):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":       err.Error(),
			"max_size_mb": sizeErr.MaxSizeMB(),
		})
	default:
		c.logger.Error().Err(err).Msg("Upload failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed: " + err.Error()})
	}
}
