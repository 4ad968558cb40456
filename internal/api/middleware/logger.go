package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/timmy/thumbcraft/internal/logger"
)

// RequestIDHeader carries the request ID back to the client. An incoming
// value is reused so gateway and service logs can be joined.
const RequestIDHeader = "X-Request-ID"

// Logger returns a Gin middleware that injects a request-scoped logger.
// Parameters:
//   - log: base logger to enrich with request fields; nil uses the default.
//
// Returns:
//   - gin.HandlerFunc: middleware handler.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := c.Request.Context()
		if log != nil {
			ctx = log.WithContext(ctx)
		}
		ctx = logger.WithFields(ctx, logger.Fields{
			logger.FieldRequestID: requestID,
			logger.FieldComponent: "api",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		logger.CtxDebug(ctx, "Request started: method=%s, path=%s, client_ip=%s",
			c.Request.Method, path, c.ClientIP())

		c.Next()

		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}

		// Handlers may have enriched the context (user_id), so log with theirs.
		entry := logger.With(logger.Fields{logger.FieldSize: c.Writer.Size()}).
			WithStatus(c.Writer.Status()).
			Since(start)
		reqCtx := c.Request.Context()
		switch {
		case c.Writer.Status() >= 500:
			entry.Error(reqCtx, "Request completed: method=%s, path=%s", c.Request.Method, fullPath)
		case c.Writer.Status() >= 400:
			entry.Warn(reqCtx, "Request completed: method=%s, path=%s", c.Request.Method, fullPath)
		default:
			entry.Info(reqCtx, "Request completed: method=%s, path=%s", c.Request.Method, fullPath)
		}
	}
}
