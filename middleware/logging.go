package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"

// RequestID tags every request with an id, reusing X-Request-ID when the caller sent one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger writes one structured line per request.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", GetRequestID(c)),
		}
		if p, err := GetPrincipal(c); err == nil {
			fields = append(fields, zap.String("account", p.Subject()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("Server error", fields...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		default:
			logger.Info("Request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 response and forwards the stack to the reporter.
func Recovery(reporter services.ErrorReporter) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		reporter.Report(services.ErrorReport{
			RequestID:  GetRequestID(c),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Message:    fmt.Sprint(recovered),
			Stack:      string(debug.Stack()),
			OccurredAt: time.Now(),
		})
		abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	})
}

// ReportErrors forwards errors attached to a request that ended with a 5xx status.
func ReportErrors(reporter services.ErrorReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < http.StatusInternalServerError || len(c.Errors) == 0 {
			return
		}
		reporter.Report(services.ErrorReport{
			RequestID:  GetRequestID(c),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Message:    c.Errors.String(),
			OccurredAt: time.Now(),
		})
	}
}

// GetRequestID returns the id assigned by RequestID, or an empty string.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
