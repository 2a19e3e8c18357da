package api

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestID middleware tags each request with a UUID so logs and error
// responses can be correlated, honoring an inbound X-Request-ID if present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger middleware logs HTTP requests
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()

		log.Printf("[API] %s | %3d | %12v | %s | %s | request_id=%v",
			clientIP,
			statusCode,
			latency,
			c.Request.Method,
			path,
			c.GetString("request_id"),
		)

		if len(c.Errors) > 0 {
			log.Printf("[API ERROR] %s\n", c.Errors.String())
		}
	}
}

// MetricsMiddleware collects API metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		_ = time.Since(start) // Using _ to ignore unused latency for now
	}
}

// RateLimiterStorage provides storage for rate limiting
type RateLimiterStorage struct {
	limiters map[string]*rate.Limiter
	expiry   map[string]time.Time
	config   RateLimitConfig
	mu       sync.RWMutex
	done     chan struct{}
}

// NewRateLimiterStorage creates a new rate limiter storage
func NewRateLimiterStorage(config RateLimitConfig) *RateLimiterStorage {
	storage := &RateLimiterStorage{
		limiters: make(map[string]*rate.Limiter),
		expiry:   make(map[string]time.Time),
		config:   config,
		done:     make(chan struct{}),
	}

	go storage.cleanupTask()

	return storage
}

// GetLimiter returns a rate limiter for a given key
func (s *RateLimiterStorage) GetLimiter(key string) *rate.Limiter {
	s.mu.RLock()
	if limiter, exists := s.limiters[key]; exists {
		if time.Now().Before(s.expiry[key]) {
			s.mu.RUnlock()
			return limiter
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, exists := s.limiters[key]; exists {
		if time.Now().Before(s.expiry[key]) {
			return limiter
		}
		delete(s.limiters, key)
		delete(s.expiry, key)
	}

	limiter := rate.NewLimiter(rate.Limit(s.config.Limit), s.config.Burst)
	s.limiters[key] = limiter
	s.expiry[key] = time.Now().Add(s.config.Expiration)

	return limiter
}

func (s *RateLimiterStorage) cleanupTask() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

func (s *RateLimiterStorage) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, exp := range s.expiry {
		if now.After(exp) {
			delete(s.limiters, key)
			delete(s.expiry, key)
		}
	}
}

// Close stops the cleanup goroutine
func (s *RateLimiterStorage) Close() {
	close(s.done)
}

// RateLimiter middleware implements rate limiting
func RateLimiter(config RateLimitConfig) gin.HandlerFunc {
	storage := NewRateLimiterStorage(config)

	shutdownHooks = append(shutdownHooks, func() {
		storage.Close()
	})

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		clientID := fmt.Sprintf("ip:%s", clientIP)

		limiter := storage.GetLimiter(clientID)

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "60",
			})
			return
		}

		c.Next()
	}
}

// shutdownHooks run during graceful shutdown.
var shutdownHooks []func()

// CORSMiddleware enables Cross-Origin Resource Sharing
func CORSMiddleware(corsConfig *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowedOrigins := corsConfig.CORSOrigins
		if len(allowedOrigins) == 0 {
			allowedOrigins = []string{"http://localhost:3000"}
		}

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if allowedOrigin == "*" {
				allowed = true
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			} else if allowedOrigin == origin {
				allowed = true
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == "OPTIONS" {
			if allowed {
				c.AbortWithStatus(204)
			} else {
				c.AbortWithStatus(403)
			}
			return
		}

		c.Next()
	}
}

// ErrorHandlerMiddleware maps apperrors classes to HTTP status codes for
// handlers that set c.Error instead of writing a response directly
// (spec §7).
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, message := statusForError(err)
		c.JSON(status, gin.H{"error": message})
	}
}
