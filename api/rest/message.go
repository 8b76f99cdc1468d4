package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/apperr"
	"github.com/kasuganosora/neighborly/message"
	mw "github.com/kasuganosora/neighborly/middleware"
)

// MessageHandler serves the caller's direct-message inbox.
type MessageHandler struct {
	messages *message.Service
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(messages *message.Service) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Inbox handles GET /api/messages?before_id=&limit=.
func (h *MessageHandler) Inbox(c *gin.Context) {
	before, err := queryInt(c, "before_id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	msgs, err := h.messages.Inbox(c.Request.Context(), mw.CurrentUser(c).ID, before, int(limit))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
