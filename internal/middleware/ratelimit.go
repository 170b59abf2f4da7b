package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/mx-space/wiki/internal/pkg/response"
)

// RateLimit allows max requests per window for each caller, keyed by user
// id when signed in and by client IP otherwise. Redis errors let the
// request through.
func RateLimit(kv redis.KV, scope string, max int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := CurrentUserID(c)
		if who == "" {
			who = c.ClientIP()
		}
		if who == "" {
			c.Next()
			return
		}

		slot := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("wiki:rate_limit:%s:%s:%d", scope, who, slot)

		count, err := kv.Incr(c.Request.Context(), key, window+time.Second)
		if err != nil {
			c.Next()
			return
		}
		if count > max {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())+1))
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
