package logger

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Severity tags security events so they can be told apart from routine denials.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Request logs an inbound API request.
func Request(log *zap.Logger, method, url string, fields ...zap.Field) {
	if log == nil {
		return
	}
	fields = append([]zap.Field{
		zap.String("method", method),
		zap.String("url", url),
	}, fields...)
	log.Info(fmt.Sprintf("API Request: %s %s", method, url), fields...)
}

// Response logs the outcome of an API request. Server errors log at error
// level and client errors at warn.
func Response(log *zap.Logger, method, url string, status int, duration time.Duration, fields ...zap.Field) {
	if log == nil {
		return
	}
	fields = append([]zap.Field{
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", status),
		zap.Int64("duration_ms", duration.Milliseconds()),
	}, fields...)
	msg := fmt.Sprintf("API Response: %s %s - %d (%dms)", method, url, status, duration.Milliseconds())
	switch {
	case status >= http.StatusInternalServerError:
		log.Error(msg, fields...)
	case status >= http.StatusBadRequest:
		log.Warn(msg, fields...)
	default:
		log.Info(msg, fields...)
	}
}

// RequestError logs a failure that happened while serving a request.
func RequestError(log *zap.Logger, method, url string, err error, fields ...zap.Field) {
	if log == nil {
		return
	}
	fields = append([]zap.Field{
		zap.String("method", method),
		zap.String("url", url),
		zap.Error(err),
	}, fields...)
	log.Error(fmt.Sprintf("API Error: %s %s", method, url), fields...)
}

func AuthEvent(log *zap.Logger, event string, fields ...zap.Field) {
	if log == nil {
		return
	}
	fields = append([]zap.Field{zap.String("auth_event", event)}, fields...)
	log.Info("Auth Event: "+event, fields...)
}

func SecurityEvent(log *zap.Logger, event string, severity Severity, fields ...zap.Field) {
	if log == nil {
		return
	}
	fields = append([]zap.Field{
		zap.Bool("security_event", true),
		zap.String("severity", string(severity)),
	}, fields...)
	log.Warn("Security Event: "+event, fields...)
}

func AuditEvent(log *zap.Logger, action, resource string, fields ...zap.Field) {
	if log == nil {
		return
	}
	fields = append([]zap.Field{
		zap.Bool("audit", true),
		zap.String("action", action),
		zap.String("resource", resource),
	}, fields...)
	log.Info(fmt.Sprintf("Audit: %s %s", action, resource), fields...)
}
