package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/apperr"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/relation"
)

// ContactHandler serves contact-disclosure requests.
type ContactHandler struct {
	contacts *relation.ContactService
}

// NewContactHandler creates a ContactHandler.
func NewContactHandler(contacts *relation.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

type contactRequestBody struct {
	TargetID int64  `json:"target_id" binding:"required"`
	Type     string `json:"type" binding:"required"`
}

// Create handles POST /api/contact-requests. 201 for a new request, 200 when
// an identical one is already pending.
func (h *ContactHandler) Create(c *gin.Context) {
	var req contactRequestBody
	if err := bindJSON(c, &req); err != nil {
		apperr.Respond(c, err)
		return
	}
	cr, created, err := h.contacts.Create(c.Request.Context(), mw.CurrentUser(c).ID, req.TargetID, model.ContactType(req.Type))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"request": cr, "created": created})
}

// Respond handles POST /api/contact-requests/:id/respond.
func (h *ContactHandler) Respond(c *gin.Context) {
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
	cr, err := h.contacts.Respond(c.Request.Context(), mw.CurrentUser(c).ID, id, *req.Accept)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": cr})
}

// List handles GET /api/contact-requests?direction=in|out.
func (h *ContactHandler) List(c *gin.Context) {
	dir, err := relation.ParseDirection(c.Query("direction"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	rows, err := h.contacts.List(c.Request.Context(), mw.CurrentUser(c).ID, dir)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": rows, "direction": dir})
}
