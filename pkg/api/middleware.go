package api

import (
	"net/http"
	"time"

	"mutegate/pkg/auth"
	"mutegate/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// maxBodyBytes caps request bodies at 10KB, matching the limit the legacy
// deployment enforced.
const maxBodyBytes = 10 << 10

// RequestIDMiddleware tags each request with a unique id for tracing.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Set("request_id", requestID)

		c.Next()
	}
}

// LoggingMiddleware logs each request with method, path, status and timing.
func LoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		requestID, _ := c.Get("request_id")
		log.DebugWith("request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"request_id", requestID,
		)
	}
}

// BodyLimitMiddleware bounds the request body size before any handler
// reads it.
func BodyLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	}
}

// AuthMiddleware gates every route, the legacy endpoint included. It runs
// before any request interpretation: unauthenticated requests never reach
// validation or dispatch. Rejections are logged with the caller's address
// and the raw provided value for operator auditing.
func AuthMiddleware(authorizer *auth.Authorizer, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		token, ok := auth.Token(header)
		if ok && authorizer.Authorize(token) {
			c.Next()
			return
		}

		log.WarnWith("unauthorized request",
			"ip", auth.ClientIP(c.Request),
			"provided", header,
		)

		c.AbortWithStatusJSON(http.StatusUnauthorized, authErrorResponse{
			ErrorID:  errIDAuthMismatch,
			ErrorMsg: "Authorization mismatch",
		})
	}
}
