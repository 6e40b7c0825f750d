package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"github.com/wfunc/figurine-hub/internal/logger"
	"github.com/wfunc/figurine-hub/internal/metrics"
	"go.uber.org/zap"
)

// ContextRequestID 请求ID上下文键
const ContextRequestID = "requestID"

// RequestID 为每个请求生成或透传 X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Logger 请求日志与指标中间件，m 可以为 nil
func Logger(l *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger.LogRequest(l, c.Request.Method, c.Request.URL.Path, status, latency, c.ClientIP())
		m.ObserveHTTPRequest(c.Request.Method, c.FullPath(), status, latency)
	}
}

// Recovery 捕获panic并返回统一的500响应
func Recovery(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				l.Error("请求处理发生panic",
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				err := apperrors.Wrap(fmt.Errorf("panic: %v", r), apperrors.ErrInternal)
				c.AbortWithStatusJSON(http.StatusInternalServerError, apperrors.NewErrorResponse(err, c.GetString(ContextRequestID)))
			}
		}()
		c.Next()
	}
}
