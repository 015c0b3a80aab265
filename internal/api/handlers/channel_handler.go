package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/opsuite/opsuite-backend/internal/api/middleware"
	"github.com/opsuite/opsuite-backend/internal/service"
)

// ChannelHandler handles channel lifecycle and membership endpoints
type ChannelHandler struct {
	channelService service.ChannelService
}

// Create handles POST /api/channels
func (h *ChannelHandler) Create(c *gin.Context) {
	var input service.CreateChannelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	channel, err := h.channelService.CreateChannel(c.Request.Context(), middleware.GetAuthContext(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}

	respondCreated(c, channel)
}

// GetOrCreateDirect handles POST /api/channels/direct
func (h *ChannelHandler) GetOrCreateDirect(c *gin.Context) {
	var input struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	channel, err := h.channelService.GetOrCreateDirect(c.Request.Context(), middleware.GetAuthContext(c), input.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, channel)
}

// List handles GET /api/channels
func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.channelService.ListChannels(c.Request.Context(), middleware.GetAuthContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, channels)
}

// Get handles GET /api/channels/:id
func (h *ChannelHandler) Get(c *gin.Context) {
	channel, err := h.channelService.GetChannel(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, channel)
}

// Delete handles DELETE /api/channels/:id
func (h *ChannelHandler) Delete(c *gin.Context) {
	if err := h.channelService.DeleteChannel(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "channel deleted")
}

// Archive handles POST /api/channels/:id/archive
func (h *ChannelHandler) Archive(c *gin.Context) {
	var input struct {
		Action string `json:"action" binding:"required,oneof=archive unarchive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	channel, err := h.channelService.Archive(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id"), input.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, channel)
}

// ============================================
// Membership
// ============================================

// ListMembers handles GET /api/channels/:id/members
func (h *ChannelHandler) ListMembers(c *gin.Context) {
	members, err := h.channelService.ListMembers(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, members)
}

// AddMembers handles POST /api/channels/:id/members
func (h *ChannelHandler) AddMembers(c *gin.Context) {
	var input service.AddMembersInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	added, err := h.channelService.AddMembers(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id"), &input)
	if err != nil {
		respondError(c, err)
		return
	}

	respondCreated(c, gin.H{"addedUserIds": added, "addedCount": len(added)})
}

// UpdateMemberRole handles PUT /api/channels/:id/members/:userId/role
func (h *ChannelHandler) UpdateMemberRole(c *gin.Context) {
	var input struct {
		Role string `json:"role" binding:"required,oneof=admin member"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	err := h.channelService.UpdateMemberRole(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id"), c.Param("userId"), input.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "member role updated")
}

// RemoveMember handles DELETE /api/channels/:id/members/:userId
func (h *ChannelHandler) RemoveMember(c *gin.Context) {
	err := h.channelService.RemoveMember(c.Request.Context(), middleware.GetAuthContext(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "member removed")
}
