// Package sse streams a signed-in user's inbox notifications as server-sent
// events.
package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/cache"
	"github.com/kasuganosora/neighborly/message"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/session"
	"go.uber.org/zap"
)

// DefaultKeepalive is the gap between keepalive comments.
const DefaultKeepalive = 30 * time.Second

// Handler handles the inbox stream endpoint.
type Handler struct {
	pubsub    cache.PubSub
	sessions  *session.Store
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new SSE Handler. keepalive <= 0 uses DefaultKeepalive.
func NewHandler(pubsub cache.PubSub, sessions *session.Store, keepalive time.Duration, logger *zap.Logger) *Handler {
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}
	return &Handler{pubsub: pubsub, sessions: sessions, keepalive: keepalive, logger: logger}
}

// ServeInbox handles GET /api/messages/stream. It must sit behind the gate
// and RequireAuth. The session is re-checked on every keepalive, so a revoked
// session ends the stream within one interval.
func (h *Handler) ServeInbox(c *gin.Context) {
	user := mw.CurrentUser(c)
	sess := mw.CurrentSession(c)

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, message.InboxChannel(user.ID))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Int64("user_id", user.ID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{
			"code": "UNAVAILABLE", "message": "notifications unavailable",
		}})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"user_id\":%d}\n\n", user.ID)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: message\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			if !h.stillLive(c.Request.Context(), sess.Token) {
				fmt.Fprintf(c.Writer, "event: revoked\ndata: {}\n\n")
				c.Writer.Flush()
				return
			}
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Handler) stillLive(ctx context.Context, token string) bool {
	s, err := h.sessions.FindByToken(ctx, token)
	if errors.Is(err, session.ErrNotFound) {
		return false
	}
	if err != nil {
		// Transient lookup errors keep the stream open until the next tick.
		h.logger.Warn("sse session check failed", zap.Error(err))
		return true
	}
	return s.Live(time.Now())
}
