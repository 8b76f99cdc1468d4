package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/apperr"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/session"
)

// AuthHandler serves login, logout and the caller's session management.
type AuthHandler struct {
	sessions *session.Service
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sessions *session.Service) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Device   string `json:"device" binding:"max=128"`
}

// sessionView marks which listed session carries the request.
type sessionView struct {
	model.Session
	Current bool `json:"current"`
}

// Login handles POST /api/session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		apperr.Respond(c, err)
		return
	}
	res, err := h.sessions.Login(c.Request.Context(), session.Credentials{
		Email:     req.Email,
		Password:  req.Password,
		Device:    req.Device,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      res.Token,
		"expires_at": res.Session.ExpiresAt.UTC().Format(time.RFC3339),
		"session":    res.Session,
		"user":       res.User,
	})
}

// Logout handles DELETE /api/session. Allowed while frozen.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), mw.CurrentSession(c)); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Revoke handles DELETE /api/session/:id.
func (h *AuthHandler) Revoke(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), mw.CurrentUser(c).ID, id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "revoked"})
}

// RevokeOthers handles DELETE /api/sessions.
func (h *AuthHandler) RevokeOthers(c *gin.Context) {
	n, err := h.sessions.RevokeOthers(c.Request.Context(), mw.CurrentSession(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}

// List handles GET /api/sessions.
func (h *AuthHandler) List(c *gin.Context) {
	current := mw.CurrentSession(c)
	rows, err := h.sessions.List(c.Request.Context(), current.UserID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	out := make([]sessionView, len(rows))
	for i, s := range rows {
		out[i] = sessionView{Session: s, Current: s.ID == current.ID}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}
