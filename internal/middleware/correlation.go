// Package middleware contains Gin middleware shared by both relay services.
package middleware

import (
	"context"

	"github.com/brightforge/relay/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderXCorrelationID is the header key carrying the correlation ID.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID assigns a correlation ID to the request, reusing one
// supplied by the caller if present, stores it in the Gin context, and
// adds it to the request's context.Context under the key
// logging.Info/Warn/Error look for.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Header(HeaderXCorrelationID, correlationID)
		c.Set(string(logging.CorrelationIDKey), correlationID)
		ctx := context.WithValue(c.Request.Context(), logging.CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
