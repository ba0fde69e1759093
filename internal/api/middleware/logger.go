package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// Logger tags each request with an ID, makes a request-scoped logger
// available through logger.FromContext and logs the completed request.
func Logger(log *zap.SugaredLogger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLog := log.With("request_id", requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			reqLog.Errorw("[API] request", fields...)
		case status >= 400:
			reqLog.Warnw("[API] request", fields...)
		default:
			reqLog.Infow("[API] request", fields...)
		}
	}
}
