package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories bundles every data-access component for service wiring.
type Repositories struct {
	UserRepo         UserRepository
	RoleRepo         RoleRepository
	ChannelRepo      ChannelRepository
	MessageRepo      MessageRepository
	NotificationRepo NotificationRepository
}

// NewRepositories creates all repositories over one connection pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepo:         NewUserRepository(pool),
		RoleRepo:         NewRoleRepository(pool),
		ChannelRepo:      NewChannelRepository(pool),
		MessageRepo:      NewMessageRepository(pool),
		NotificationRepo: NewNotificationRepository(pool),
	}
}
