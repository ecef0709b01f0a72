package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sessionlab/billing/internal/types"
)

// RequestIDMiddleware tags every request with an ID for log correlation.
// The caller's X-Request-ID is honored when present.
func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUID()
	}
	ctx = types.SetRequestID(ctx, requestID)

	// Carry the acting user through to audit entries when the caller
	// identifies one
	if actorID := c.GetHeader(types.HeaderActorID); actorID != "" {
		ctx = types.SetActorID(ctx, actorID)
	}

	c.Request = c.Request.WithContext(ctx)
	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}
