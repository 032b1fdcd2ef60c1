package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdfpilot/pdfpilot-backend/internal/clients/redis"
	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/requestdata"
)

// RateLimitMiddleware caps per-user request volume on the answer
// endpoint. A nil limiter disables the cap entirely (local dev without
// Redis).
type RateLimitMiddleware struct {
	log     *logger.Logger
	limiter redis.RateLimiter
}

func NewRateLimitMiddleware(log *logger.Logger, limiter redis.RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		log:     log.With("middleware", "RateLimitMiddleware"),
		limiter: limiter,
	}
}

func (rm *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rm.limiter == nil {
			c.Next()
			return
		}

		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		allowed, err := rm.limiter.Allow(c.Request.Context(), rd.UserID.String())
		if err != nil {
			// Limiter errors fail open; Allow already logged it.
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
