package logger

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/givebox/internal/observability/context"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-Id"

type MiddlewareConfig struct {
	// Debug logs the inbound request line and a stack for failed requests.
	Debug bool
	// ErrorClassifier maps the last handler error to (error_type, error_code).
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware assigns a request id and logs one line per completed
// request. Health probes and metric scrapes only log at debug unless they fail.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		method, path := c.Request.Method, c.Request.URL.Path
		quiet := path == "/metrics" || strings.HasPrefix(path, "/api/health")
		if cfg.Debug && !quiet {
			Request(FromContext(c.Request.Context()), method, path,
				zap.String("client_ip", c.ClientIP()),
				zap.String("user_agent", c.Request.UserAgent()),
			)
		}

		c.Next()

		// Handlers may have enriched the context with org and actor.
		log := FromContext(c.Request.Context())
		status := c.Writer.Status()
		fields := completionFields(c, cfg)
		if quiet && status < 500 {
			log.Debug("http_request", append(fields, zap.Int("status", status))...)
			return
		}
		Response(log, method, path, status, time.Since(start), fields...)
	}
}

func completionFields(c *gin.Context, cfg MiddlewareConfig) []zap.Field {
	route := c.FullPath()
	if route == "" {
		route = "unknown"
	}
	fields := []zap.Field{
		zap.String("route", route),
		zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
		zap.Int("bytes_out", max(c.Writer.Size(), 0)),
	}

	last := c.Errors.Last()
	if last == nil {
		return fields
	}
	errorType, errorCode := "unknown", ""
	if cfg.ErrorClassifier != nil {
		errorType, errorCode = cfg.ErrorClassifier(last.Err)
	}
	fields = append(fields, zap.String("error_type", errorType), zap.String("error_code", errorCode))
	if cfg.Debug {
		fields = append(fields, zap.Error(last.Err))
	}
	return fields
}
