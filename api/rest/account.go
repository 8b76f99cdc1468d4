package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/account"
	"github.com/kasuganosora/neighborly/apperr"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/relation"
)

// AccountHandler serves registration, who-am-I, freeze and profile lookups.
type AccountHandler struct {
	accounts *account.Service
	facade   *relation.Facade
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *account.Service, facade *relation.Facade) *AccountHandler {
	return &AccountHandler{accounts: accounts, facade: facade}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name" binding:"max=64"`
	Phone       string `json:"phone" binding:"max=32"`
}

// Profile is the public view of another user.
type Profile struct {
	ID          int64      `json:"id"`
	DisplayName string     `json:"display_name"`
	Role        model.Role `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
}

func profileOf(u *model.User) Profile {
	return Profile{ID: u.ID, DisplayName: u.DisplayName, Role: u.Role, CreatedAt: u.CreatedAt}
}

// Register handles POST /api/users.
func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		apperr.Respond(c, err)
		return
	}
	u, err := h.accounts.Register(c.Request.Context(), account.Registration{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// Me handles GET /api/me. Allowed while frozen.
func (h *AccountHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user":       mw.CurrentUser(c),
		"session_id": mw.CurrentSession(c).ID,
	})
}

// Freeze handles POST /api/me/freeze.
func (h *AccountHandler) Freeze(c *gin.Context) {
	u, err := h.accounts.Freeze(c.Request.Context(), mw.CurrentUser(c).ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// Reactivate handles POST /api/me/reactivate. Allowed while frozen.
func (h *AccountHandler) Reactivate(c *gin.Context) {
	u, err := h.accounts.Reactivate(c.Request.Context(), mw.CurrentUser(c).ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// Profile handles GET /api/users/:id. A user hidden by a block answers
// exactly like one that does not exist.
func (h *AccountHandler) Profile(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	ctx := c.Request.Context()
	visible, err := h.facade.Visible(ctx, mw.CurrentUser(c), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if !visible {
		apperr.Respond(c, apperr.NotFound("user not found"))
		return
	}
	u, err := h.accounts.FindByID(ctx, id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if !u.Active && !account.IsStaff(mw.CurrentUser(c)) {
		apperr.Respond(c, apperr.NotFound("user not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profileOf(u)})
}
