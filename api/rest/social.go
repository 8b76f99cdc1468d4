package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/account"
	"github.com/kasuganosora/neighborly/apperr"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/relation"
)

// SocialHandler serves friend requests, friends, blocks and relationship status.
type SocialHandler struct {
	friends  *relation.FriendService
	blocks   *relation.BlockService
	facade   *relation.Facade
	accounts *account.Service
}

// NewSocialHandler creates a SocialHandler.
func NewSocialHandler(friends *relation.FriendService, blocks *relation.BlockService, facade *relation.Facade, accounts *account.Service) *SocialHandler {
	return &SocialHandler{friends: friends, blocks: blocks, facade: facade, accounts: accounts}
}

type friendRequestBody struct {
	ReceiverID int64 `json:"receiver_id" binding:"required"`
}

// SendFriendRequest handles POST /api/friend-requests.
func (h *SocialHandler) SendFriendRequest(c *gin.Context) {
	var req friendRequestBody
	if err := bindJSON(c, &req); err != nil {
		apperr.Respond(c, err)
		return
	}
	fr, err := h.friends.Send(c.Request.Context(), mw.CurrentUser(c).ID, req.ReceiverID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": fr})
}

// RespondFriendRequest handles POST /api/friend-requests/:id/respond.
func (h *SocialHandler) RespondFriendRequest(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	var req acceptBody
	if err := bindJSON(c, &req); err != nil {
		apperr.Respond(c, err)
		return
	}
	fr, err := h.friends.Respond(c.Request.Context(), mw.CurrentUser(c).ID, id, *req.Accept)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": fr})
}

// CancelFriendRequest handles DELETE /api/friend-requests/:id.
func (h *SocialHandler) CancelFriendRequest(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := h.friends.Cancel(c.Request.Context(), mw.CurrentUser(c).ID, id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancelled"})
}

// ListFriendRequests handles GET /api/friend-requests?direction=in|out.
func (h *SocialHandler) ListFriendRequests(c *gin.Context) {
	dir, err := relation.ParseDirection(c.Query("direction"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	rows, err := h.friends.ListRequests(c.Request.Context(), mw.CurrentUser(c).ID, dir)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": rows, "direction": dir})
}

// ListFriends handles GET /api/friends.
func (h *SocialHandler) ListFriends(c *gin.Context) {
	friends, err := h.friends.ListFriends(c.Request.Context(), mw.CurrentUser(c).ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// DeleteFriend handles DELETE /api/friends/:userId.
func (h *SocialHandler) DeleteFriend(c *gin.Context) {
	other, err := pathID(c, "userId")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := h.friends.Unfriend(c.Request.Context(), mw.CurrentUser(c).ID, other); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// Block handles POST /api/blocks/:targetId. Blocking twice returns the
// existing block.
func (h *SocialHandler) Block(c *gin.Context) {
	target, err := pathID(c, "targetId")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	b, err := h.blocks.Block(c.Request.Context(), mw.CurrentUser(c).ID, target)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"block": b})
}

// Unblock handles DELETE /api/blocks/:id.
func (h *SocialHandler) Unblock(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := h.blocks.Unblock(c.Request.Context(), mw.CurrentUser(c).ID, id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unblocked"})
}

// ListBlocks handles GET /api/blocks.
func (h *SocialHandler) ListBlocks(c *gin.Context) {
	rows, err := h.blocks.List(c.Request.Context(), mw.CurrentUser(c).ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": rows})
}

// RelationshipStatus handles GET /api/relationship-status/:targetId.
func (h *SocialHandler) RelationshipStatus(c *gin.Context) {
	target, err := pathID(c, "targetId")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	ctx := c.Request.Context()
	u, err := h.accounts.FindByID(ctx, target)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if !u.Active {
		apperr.Respond(c, apperr.NotFound("user not found"))
		return
	}
	view, err := h.facade.Status(ctx, mw.CurrentUser(c).ID, target)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
