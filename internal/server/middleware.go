package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abhisek/mcqgen/internal/logger"
	"github.com/abhisek/mcqgen/internal/metrics"
)

const (
	headerRequestID    = "X-Request-ID"
	maxRequestIDLength = 128
	ctxKeyRequestID    = "request_id"
)

// RecoveryMiddleware turns a handler panic into a logged 500.
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic recovered",
					logger.Any("error", err),
					logger.String("path", c.Request.URL.Path),
					logger.String("method", c.Request.Method),
					logger.String("client_ip", c.ClientIP()),
				)
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// RequestIDLoggerMiddleware assigns every request an ID, echoing a sane
// inbound X-Request-ID, and stores a logger carrying it in the request
// context.
func RequestIDLoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		c.Set(ctxKeyRequestID, id)
		c.Writer.Header().Set(headerRequestID, id)

		scoped := log.With(logger.String("request_id", id))
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), scoped))
		c.Next()
	}
}

// LoggerMiddleware logs one line per request with the request-scoped logger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if !strings.HasPrefix(path, "/healthz") {
			fields = append(fields, logger.String("user_agent", c.Request.UserAgent()))
		}

		log := logger.FromContext(c.Request.Context())
		if len(c.Errors) > 0 {
			fields = append(fields, logger.Strings("errors", c.Errors.Errors()))
			log.Error("HTTP request with errors", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}

// MetricsMiddleware records request counts and latency by route.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// CORSMiddleware answers preflight requests and sets CORS headers for
// allowed origins. A "*" entry allows every origin.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed := allowedOrigin(c.GetHeader("Origin"), origins)
		if allowed == "" {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+headerRequestID)
		h.Set("Access-Control-Expose-Headers", headerRequestID+", "+headerSessionID)
		h.Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func allowedOrigin(origin string, allowed []string) string {
	if origin == "" {
		return ""
	}
	for _, a := range allowed {
		if a == "*" {
			return "*"
		}
		if a == origin {
			return origin
		}
	}
	return ""
}

// RateLimitMiddleware rejects clients that exceed their token bucket.
func RateLimitMiddleware(l *clientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if ok, wait := l.allow(c.ClientIP()); !ok {
			c.Header("Retry-After", retryAfter(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
