package handlers

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/interfaces/http/response"
	"token-registry.backend/internal/usecases"
	"token-registry.backend/pkg/logger"
)

// SSE event names
const (
	eventToken   = "token"
	eventDeleted = "deleted"
	eventError   = "error"
	eventPing    = "ping"
)

// StreamHandler serves the change feeds as server-sent events
type StreamHandler struct {
	feedUsecase *usecases.FeedUsecase
	keepAlive   time.Duration
}

// NewStreamHandler creates a new stream handler. keepAlive paces ping events on idle streams.
func NewStreamHandler(feedUsecase *usecases.FeedUsecase, keepAlive time.Duration) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &StreamHandler{feedUsecase: feedUsecase, keepAlive: keepAlive}
}

// StreamEnabled streams the enabled tokens of the requested networks
// GET /api/v1/streams/tokens?chainIds=1,137
func (h *StreamHandler) StreamEnabled(c *gin.Context) {
	chainIDs, err := parseChainIDs(c.Query("chainIds"))
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	changes, err := h.feedUsecase.SubscribeEnabled(ctx, chainIDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	streamEvents(c, h.keepAlive, changes, func(cs entities.ChangeSet) bool {
		if cs.Kind == entities.ChangeError {
			c.SSEvent(eventError, errorPayload(cs.Err))
			return false
		}
		c.SSEvent(string(cs.Kind), cs)
		return true
	})
}

// StreamToken streams one token until it is deleted
// GET /api/v1/streams/tokens/:key
func (h *StreamHandler) StreamToken(c *gin.Context) {
	key, err := parseKey(c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := h.feedUsecase.SubscribeOne(ctx, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	first, ok := <-events
	if !ok {
		return
	}
	if first.Err != nil {
		response.Error(c, first.Err)
		return
	}

	prepareStream(c)
	c.SSEvent(eventToken, first.Token)
	c.Writer.Flush()

	streamEvents(c, h.keepAlive, events, func(ev entities.TokenEvent) bool {
		switch {
		case ev.Err == nil:
			c.SSEvent(eventToken, ev.Token)
			return true
		case errors.Is(ev.Err, domainerrors.ErrRecordDeleted):
			c.SSEvent(eventDeleted, key)
		default:
			c.SSEvent(eventError, errorPayload(ev.Err))
		}
		return false
	})
}

func prepareStream(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// streamEvents writes feed events until write returns false, the feed closes or the client leaves.
// Idle streams get a ping every keepAlive.
func streamEvents[T any](c *gin.Context, keepAlive time.Duration, events <-chan T, write func(T) bool) {
	prepareStream(c)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			return write(ev)
		case <-ticker.C:
			c.SSEvent(eventPing, time.Now().Unix())
			return true
		case <-ctx.Done():
			logger.Debug(ctx, "Stream client left", zap.String("path", c.FullPath()))
			return false
		}
	})
}

func errorPayload(err error) gin.H {
	appErr := domainerrors.FromError(err)
	return gin.H{"code": appErr.Code, "message": appErr.Message}
}
