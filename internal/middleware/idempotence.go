package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/mx-space/wiki/internal/pkg/response"
)

const (
	idempotenceHeader = "X-Idempotence"
	idempotenceTTL    = 60 * time.Second
)

// Idempotence rejects a repeated mutation (same caller, route and body, or
// same X-Idempotence header) while the first one is running and for a
// minute after it succeeded.
func Idempotence(kv redis.KV) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		key, err := idempotenceKey(c)
		if err != nil || key == "" {
			c.Next()
			return
		}

		redisKey := "wiki:idempotence:" + key
		ctx := c.Request.Context()

		fresh, err := kv.SetNX(ctx, redisKey, "0", idempotenceTTL)
		if err != nil {
			c.Next()
			return
		}
		if !fresh {
			msg := "Requête identique déjà traitée, patientez une minute."
			if val, _ := kv.Get(ctx, redisKey); val == "0" {
				msg = "Requête identique en cours de traitement..."
			}
			response.Conflict(c, msg)
			return
		}

		c.Next()

		if status := c.Writer.Status(); status >= 200 && status < 300 {
			_ = kv.Set(ctx, redisKey, "1", idempotenceTTL)
		} else {
			_ = kv.Del(ctx, redisKey)
		}
	}
}

func idempotenceKey(c *gin.Context) (string, error) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return CurrentUserID(c) + ":" + hdr, nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	who := CurrentUserID(c)
	if who == "" {
		who = c.ClientIP()
	}
	raw := c.Request.Method + "|" + c.Request.URL.String() + "|" + who + "|" + string(body)
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}
