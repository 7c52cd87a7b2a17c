package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Endpoint describes one public route on the home page
type Endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var endpoints = map[string]Endpoint{
	"sensor_data":   {Method: http.MethodPost, Path: "/sensor-data", Description: "Submit a sensor reading and receive a care advisory"},
	"response_body": {Method: http.MethodGet, Path: "/response-body", Description: "Latest advisory with its sensor readings"},
	"upload":        {Method: http.MethodPost, Path: "/upload", Description: "Upload a plant image (multipart field 'image')"},
	"images":        {Method: http.MethodGet, Path: "/images", Description: "List uploaded images"},
	"image":         {Method: http.MethodGet, Path: "/images/:id", Description: "Metadata of one uploaded image"},
	"identify":      {Method: http.MethodPost, Path: "/identify", Description: "Identify the plant in an uploaded image"},
	"health":        {Method: http.MethodGet, Path: "/health/ready", Description: "Readiness of the service and its dependencies"},
	"metrics":       {Method: http.MethodGet, Path: "/metrics", Description: "Prometheus metrics"},
}

// HomeController serves the service banner
type HomeController struct {
	service string
}

// NewHomeController creates a new home controller
func NewHomeController(service string) *HomeController {
	return &HomeController{service: service}
}

// RegisterRoutes registers the home route with Gin
func (c *HomeController) RegisterRoutes(router *gin.Engine) {
	router.GET("/", c.Home)
}

func (c *HomeController) Home(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"service":   c.service,
		"status":    "running",
		"endpoints": endpoints,
	})
}
