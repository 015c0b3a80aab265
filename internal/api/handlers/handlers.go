package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/opsuite/opsuite-backend/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth         *AuthHandler
	Channel      *ChannelHandler
	Message      *MessageHandler
	Notification *NotificationHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:         &AuthHandler{authService: services.Auth},
		Channel:      &ChannelHandler{channelService: services.Channel},
		Message:      &MessageHandler{messageService: services.Message},
		Notification: &NotificationHandler{notificationService: services.Notification},
	}
}

// ============================================
// Response Envelope
// ============================================

// Response is the envelope every endpoint answers with
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

// respondBindError turns a gin binding failure into a 400 with structured
// per-field detail for form binding.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fieldErrors := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fieldErrors[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "validation failed",
			Details: gin.H{"fieldErrors": fieldErrors},
		})
		return
	}
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
}

// respondError maps service errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := Response{Success: false, Error: err.Error()}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrInsufficientPermission),
		errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrAdminOnlyAdd),
		errors.Is(err, service.ErrAdminOnlyPost),
		errors.Is(err, service.ErrOwnerProtected),
		errors.Is(err, service.ErrExternalMembersNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrAllMembersExist),
		errors.Is(err, service.ErrAlreadyArchived),
		errors.Is(err, service.ErrNotArchived):
		status = http.StatusConflict
	default:
		// Store faults never leak their internals to the caller
		log.Printf("❌ [API] Internal error - Path: %s, Error: %v", c.Request.URL.Path, err)
		body.Error = "internal server error"
	}

	var accessErr *service.ChannelAccessError
	if errors.As(err, &accessErr) {
		body.Details = gin.H{"deniedChannelIds": accessErr.ChannelIDs}
	}

	c.JSON(status, body)
}
