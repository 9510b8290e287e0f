package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/observability"
)

// requestIDFromContext returns the inbound request id, minting one when
// the client did not send any.
func requestIDFromContext(c *gin.Context) string {
	if id := observability.RequestIDFromRequest(c.Request); id != "" {
		return id
	}
	return uuid.NewString()
}
