package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rota-planner/backend/pkg/redis"
	"rota-planner/backend/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的写请求限流中间件
// limit: 窗口内每个 IP 每个路由允许的最大写请求数
// window: 滑动窗口时长
// rdb 为 nil 或 limit <= 0 时不限流；GET / HEAD / OPTIONS 不计数
func RateLimit(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 || isReadOnly(c.Request.Method) {
			c.Next()
			return
		}

		key := fmt.Sprintf("rota:rate_limit:%s:%s:%s", c.ClientIP(), c.Request.Method, c.FullPath())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			// Redis 出错时降级放行
			logger.Warn("限流检查失败，已放行", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}

func isReadOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
