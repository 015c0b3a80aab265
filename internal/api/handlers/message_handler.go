package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opsuite/opsuite-backend/internal/api/middleware"
	"github.com/opsuite/opsuite-backend/internal/service"
)

// MessageHandler handles message endpoints
type MessageHandler struct {
	messageService service.MessageService
}

// List handles GET /api/channels/:id/messages
func (h *MessageHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.messageService.ListMessages(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, messages)
}

// Post handles POST /api/channels/:id/messages
func (h *MessageHandler) Post(c *gin.Context) {
	var input service.PostMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	message, err := h.messageService.PostMessage(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id"), &input)
	if err != nil {
		respondError(c, err)
		return
	}

	respondCreated(c, message)
}

// Forward handles POST /api/messages/forward
func (h *MessageHandler) Forward(c *gin.Context) {
	var input service.ForwardMessagesInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	created, err := h.messageService.ForwardMessages(c.Request.Context(), middleware.GetAuthContext(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}

	respondCreated(c, gin.H{"messages": created, "createdCount": len(created)})
}

// Hide handles POST /api/messages/:id/hide
func (h *MessageHandler) Hide(c *gin.Context) {
	if err := h.messageService.HideForMe(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "message hidden")
}
