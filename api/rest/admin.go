package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/account"
	"github.com/kasuganosora/neighborly/apperr"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/scheduler"
	"github.com/kasuganosora/neighborly/session"
	"go.uber.org/zap"
)

// AdminHandler handles staff-only endpoints.
// Routes must be wrapped in RequireRole(MODERATOR, ADMIN).
type AdminHandler struct {
	accounts *account.Service
	sessions *session.Service
	sched    *scheduler.Scheduler
	logger   *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(accounts *account.Service, sessions *session.Service, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{accounts: accounts, sessions: sessions, sched: sched, logger: logger}
}

// ListUserSessions returns another user's live sessions.
// GET /api/admin/users/:id/sessions
func (h *AdminHandler) ListUserSessions(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.accounts.FindByID(ctx, id); err != nil {
		apperr.Respond(c, err)
		return
	}
	rows, err := h.sessions.List(ctx, id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": rows, "count": len(rows)})
}

// RevokeUserSessions signs a user out everywhere.
// DELETE /api/admin/users/:id/sessions
func (h *AdminHandler) RevokeUserSessions(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.accounts.FindByID(ctx, id); err != nil {
		apperr.Respond(c, err)
		return
	}
	actor := mw.CurrentUser(c)
	n, err := h.sessions.RevokeAllFor(ctx, actor.ID, id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	h.logger.Info("staff revoked sessions",
		zap.Int64("actor_id", actor.ID),
		zap.Int64("user_id", id),
		zap.Int64("revoked", n),
		zap.String("trace_id", mw.GetTraceID(c)))
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}

// ListSchedulerTasks returns every background task with its run counters.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}
