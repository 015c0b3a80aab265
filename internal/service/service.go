package service

import (
	"errors"

	"github.com/opsuite/opsuite-backend/internal/config"
	"github.com/opsuite/opsuite-backend/internal/db"
	"github.com/opsuite/opsuite-backend/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")

	ErrInsufficientPermission = errors.New("insufficient_permission")
	ErrNotMember              = errors.New("caller is not a member of this channel")
	ErrAdminOnlyAdd           = errors.New("only channel admins can add members")
	ErrAdminOnlyPost          = errors.New("only channel admins can post in this channel")
	ErrOwnerProtected         = errors.New("the channel owner cannot be changed or removed")
	ErrAllMembersExist        = errors.New("all specified users are already members")
	ErrExternalMembersNotAllowed = errors.New("external_members_not_allowed")
	ErrAlreadyArchived        = errors.New("channel is already archived")
	ErrNotArchived            = errors.New("channel is not archived")
)

// ChannelAccessError reports the channels a bulk operation was denied on.
// It unwraps to ErrForbidden so handlers map it to 403.
type ChannelAccessError struct {
	ChannelIDs []string
}

func (e *ChannelAccessError) Error() string {
	return "access denied to one or more channels"
}

func (e *ChannelAccessError) Unwrap() error {
	return ErrForbidden
}

// Notifier is the fan-out collaborator. Every method returns immediately;
// delivery is best effort and never reported back to the caller.
type Notifier interface {
	MessagePosted(message *repository.Message)
	MessageForwarded(message *repository.Message)
	MembersAdded(channel *repository.Channel, addedIDs []string, addedByName string)
	MemberRemoved(channel *repository.Channel, userID, removedByName string)
	MemberRoleChanged(channelID, userID, newRole string)
	ChannelArchived(channelID string, archived bool, actorID string)
}

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth         AuthService
	Permission   PermissionService
	Channel      ChannelService
	Message      MessageService
	Notification NotificationService
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Redis    *db.RedisDB
	Notifier Notifier
}

func NewServices(deps *ServiceDeps) *Services {
	permissionService := NewPermissionService(deps.Repos.RoleRepo)

	return &Services{
		Auth:       NewAuthService(deps.Config, deps.Repos.UserRepo, deps.Repos.RoleRepo, deps.Redis),
		Permission: permissionService,
		Channel: NewChannelService(
			deps.Repos.ChannelRepo,
			deps.Repos.UserRepo,
			permissionService,
			deps.Notifier,
		),
		Message: NewMessageService(
			deps.Repos.MessageRepo,
			deps.Repos.ChannelRepo,
			deps.Repos.UserRepo,
			deps.Notifier,
		),
		Notification: NewNotificationService(deps.Repos.NotificationRepo),
	}
}
