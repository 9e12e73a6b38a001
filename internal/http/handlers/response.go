// Package handlers implements the HTTP endpoints: the bridge webhook, the
// status report, and health.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veigamann/whisper-zap/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"unauthorized"`
	Message   string `json:"message" example:"invalid webhook secret"`
}

// fail aborts with an ErrorResponse. Server errors are logged.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().Int("status", status).Str("code", code).Str("message", msg).Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router use the same envelope for its fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }
