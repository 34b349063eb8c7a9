package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/pkg/logger"
	"token-registry.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// LockDuration is the time we hold the lock while processing
	LockDuration = 30 * time.Second
	// RetentionDuration is how long we keep the response
	RetentionDuration = 24 * time.Hour

	processingMarker = "processing"
)

var (
	redisGet   = redis.Get
	redisSet   = redis.Set
	redisSetNX = redis.SetNX
	redisDel   = redis.Del
)

type cachedResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response when a producer retries a write with the same key
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		producer, _ := GetProducer(c)
		storageKey := fmt.Sprintf("idempotency:%s:%s:%s", producer, c.FullPath(), key)
		ctx := c.Request.Context()

		val, err := redisGet(ctx, storageKey)
		switch {
		case err == nil:
			if val == processingMarker {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"code":    domainerrors.CodeConflict,
					"message": "Request already in progress",
				})
				return
			}

			var cached cachedResponse
			if err := json.Unmarshal([]byte(val), &cached); err != nil {
				logger.Warn(ctx, "Discarding unreadable idempotency entry", zap.String("key", storageKey), zap.Error(err))
				_ = redisDel(ctx, storageKey)
				break
			}
			c.Header("X-Idempotency-Hit", "true")
			c.Data(cached.Status, "application/json; charset=utf-8", []byte(cached.Body))
			c.Abort()
			return
		case !errors.Is(err, goredis.Nil):
			// redis unavailable, process without protection
			logger.Warn(ctx, "Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}

		acquired, err := redisSetNX(ctx, storageKey, processingMarker, LockDuration)
		if err != nil || !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":    domainerrors.CodeConflict,
				"message": "Request in progress",
			})
			return
		}

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			payload, _ := json.Marshal(cachedResponse{Status: status, Body: w.body.String()})
			_ = redisSet(ctx, storageKey, string(payload), RetentionDuration)
		} else {
			_ = redisDel(ctx, storageKey)
		}
	}
}
