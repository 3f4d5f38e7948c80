package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
	"transferdesk/models"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Redis        *redis.Client
	Requests     int           // Number of requests allowed
	Window       time.Duration // Time window
	KeyPrefix    string        // Redis key prefix
	SkipPaths    []string      // Paths to skip rate limiting
	ErrorMessage string        // Custom error message
}

// RateLimiter provides fixed-window rate limiting backed by Redis
type RateLimiter struct {
	config RateLimitConfig
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}
	if config.ErrorMessage == "" {
		config.ErrorMessage = "Rate limit exceeded"
	}
	if config.Requests <= 0 {
		config.Requests = 100
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{config: config}
}

// Middleware returns the rate limiting middleware. With no Redis client the
// limiter is a no-op; a Redis outage also fails open.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if rl.config.Redis == nil || shouldSkipPath(c.Request.URL.Path, rl.config.SkipPaths) {
			c.Next()
			return
		}

		key := rl.buildKey(c)
		count, err := rl.increment(c.Request.Context(), key)
		if err != nil {
			logrus.Warnf("Rate limiter unavailable: %v", err)
			c.Next()
			return
		}

		remaining := rl.config.Requests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > rl.config.Requests {
			c.Header("Retry-After", strconv.Itoa(int(rl.config.Window.Seconds())))
			c.JSON(http.StatusTooManyRequests, models.APIResponse{
				Success: false,
				Error: &models.APIError{
					Code:    models.ErrCodeRateLimit,
					Message: rl.config.ErrorMessage,
				},
			})
			c.Abort()
			return
		}

		c.Next()
	})
}

func (rl *RateLimiter) buildKey(c *gin.Context) string {
	identity := c.ClientIP()
	if userID, exists := c.Get("user_id"); exists {
		identity = fmt.Sprintf("user:%v", userID)
	}
	window := time.Now().Unix() / int64(rl.config.Window.Seconds())
	return fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, identity, window)
}

func (rl *RateLimiter) increment(ctx context.Context, key string) (int64, error) {
	pipe := rl.config.Redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
