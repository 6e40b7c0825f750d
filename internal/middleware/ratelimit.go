package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// defaultMaxLimiters 最多保留的客户端限流器数量
const defaultMaxLimiters = 10000

// RateLimiter 按客户端IP限流
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *lru.Cache
	log      *zap.Logger
}

// NewRateLimiter 创建限流器
func NewRateLimiter(requestsPerMinute, burst int, log *zap.Logger) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	cache, _ := lru.New(defaultMaxLimiters)
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:    burst,
		limiters: cache,
		log:      log,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Add(key, limiter)
	return limiter
}

// Middleware 限流中间件
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.Allow(key) {
			rl.log.Warn("请求频率超限", zap.String("client_ip", key), zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", strconv.Itoa(1))
			abortWithError(c, apperrors.New(apperrors.ErrRateLimitExceeded))
			return
		}
		c.Next()
	}
}
