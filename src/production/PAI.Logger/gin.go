package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is echoed back on every response
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestLogger logs one structured line per request and tags it with a request id
func RequestLogger(l *Logger) gin.HandlerFunc {
	httpLog := l.WithComponent("http")

	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		event := httpLog.Info()
		switch {
		case status >= 500:
			event = httpLog.Error()
		case status >= 400:
			event = httpLog.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// RequestID returns the id assigned by RequestLogger, or "" outside of it
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
