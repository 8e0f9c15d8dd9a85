package server

import (
	"time"

	"github.com/gin-gonic/gin"
)

// SuccessEnvelope is the body of every successful JSON response.
type SuccessEnvelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Success writes data wrapped in the success envelope.
func Success(c *gin.Context, status int, data any, message string) {
	c.JSON(status, SuccessEnvelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}
