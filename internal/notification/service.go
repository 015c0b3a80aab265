package notification

import (
	"context"
	"fmt"

	"github.com/opsuite/opsuite-backend/internal/repository"
	"github.com/opsuite/opsuite-backend/internal/socket"
)

// Notification types
const (
	TypeNewMessage         = "NEW_MESSAGE"
	TypeMention            = "MENTION"
	TypeAddedToChannel     = "ADDED_TO_CHANNEL"
	TypeRemovedFromChannel = "REMOVED_FROM_CHANNEL"
	TypeRoleChanged        = "ROLE_CHANGED"
	TypeChannelArchived    = "CHANNEL_ARCHIVED"
)

const previewLength = 100

// Transport is the pub/sub collaborator the fan-out publishes through.
// *socket.Broadcaster is the production implementation.
type Transport interface {
	PublishToChannel(channelID string, eventType socket.EventType, payload map[string]interface{}, excludeUserID string)
	PublishToUser(userID string, eventType socket.EventType, payload map[string]interface{})
}

// Service delivers channel and user scoped events after the originating
// write has committed. Every method returns immediately: the work runs on
// the dispatcher and its outcome never reaches the caller.
type Service struct {
	notificationRepo repository.NotificationRepository
	channelRepo      repository.ChannelRepository
	transport        Transport
	dispatcher       *Dispatcher
}

// NewService creates a new fan-out service
func NewService(
	notificationRepo repository.NotificationRepository,
	channelRepo repository.ChannelRepository,
	transport Transport,
	dispatcher *Dispatcher,
) *Service {
	return &Service{
		notificationRepo: notificationRepo,
		channelRepo:      channelRepo,
		transport:        transport,
		dispatcher:       dispatcher,
	}
}

// ============================================
// Message events
// ============================================

// MessagePosted fans a freshly persisted message out to live subscribers,
// mentioned users and the remaining members. The three legs are independent
// tasks; one failing leaves the others untouched.
func (s *Service) MessagePosted(message *repository.Message) {
	msg := *message

	s.dispatcher.Submit("broadcast_message", func(ctx context.Context) error {
		s.transport.PublishToChannel(msg.ChannelID, socket.EventNewMessage, map[string]interface{}{
			"channelId": msg.ChannelID,
			"message":   &msg,
		}, "")
		return nil
	})

	if len(msg.Mentions) > 0 {
		s.dispatcher.Submit("mention_notifications", func(ctx context.Context) error {
			return s.notifyMentions(ctx, &msg)
		})
	}

	s.dispatcher.Submit("member_notifications", func(ctx context.Context) error {
		return s.notifyMembers(ctx, &msg)
	})
}

// MessageForwarded broadcasts one forwarded copy to its target channel.
func (s *Service) MessageForwarded(message *repository.Message) {
	msg := *message
	s.dispatcher.Submit("broadcast_forwarded", func(ctx context.Context) error {
		s.transport.PublishToChannel(msg.ChannelID, socket.EventNewMessage, map[string]interface{}{
			"channelId": msg.ChannelID,
			"message":   &msg,
			"forwarded": true,
		}, "")
		return nil
	})
}

func (s *Service) notifyMentions(ctx context.Context, msg *repository.Message) error {
	var firstErr error
	for _, userID := range msg.Mentions {
		if userID == msg.SenderID {
			continue
		}

		n := &repository.Notification{
			UserID:  userID,
			Type:    TypeMention,
			Title:   "You were mentioned",
			Message: fmt.Sprintf("%s mentioned you: %s", msg.SenderName, truncate(msg.Content)),
			Data: map[string]interface{}{
				"messageId": msg.ID,
				"channelId": msg.ChannelID,
			},
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		s.transport.PublishToUser(userID, socket.EventMention, map[string]interface{}{
			"messageId":  msg.ID,
			"channelId":  msg.ChannelID,
			"senderName": msg.SenderName,
			"preview":    truncate(msg.Content),
		})
	}
	return firstErr
}

func (s *Service) notifyMembers(ctx context.Context, msg *repository.Message) error {
	memberIDs, err := s.channelRepo.GetMemberIDs(ctx, msg.ChannelID)
	if err != nil {
		return err
	}

	mentioned := make(map[string]bool, len(msg.Mentions))
	for _, id := range msg.Mentions {
		mentioned[id] = true
	}

	var firstErr error
	for _, userID := range memberIDs {
		if userID == msg.SenderID || mentioned[userID] {
			continue
		}

		n := &repository.Notification{
			UserID:  userID,
			Type:    TypeNewMessage,
			Title:   "New message",
			Message: fmt.Sprintf("%s: %s", msg.SenderName, truncate(msg.Content)),
			Data: map[string]interface{}{
				"messageId": msg.ID,
				"channelId": msg.ChannelID,
			},
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		s.transport.PublishToUser(userID, socket.EventNewMessage, map[string]interface{}{
			"messageId": msg.ID,
			"channelId": msg.ChannelID,
		})
	}
	return firstErr
}

// ============================================
// Membership events
// ============================================

// MembersAdded sends a new-channel event to each added user and a
// member-added event to the channel topic.
func (s *Service) MembersAdded(channel *repository.Channel, addedIDs []string, addedByName string) {
	channelID := channel.ID
	channelName := displayName(channel)
	users := append([]string(nil), addedIDs...)

	s.dispatcher.Submit("members_added", func(ctx context.Context) error {
		var firstErr error
		for _, userID := range users {
			n := &repository.Notification{
				UserID:  userID,
				Type:    TypeAddedToChannel,
				Title:   "Added to channel",
				Message: fmt.Sprintf("%s added you to %s", addedByName, channelName),
				Data: map[string]interface{}{
					"channelId": channelID,
				},
			}
			if err := s.notificationRepo.Create(ctx, n); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}

			s.transport.PublishToUser(userID, socket.EventAddedToChannel, map[string]interface{}{
				"channelId":   channelID,
				"channelName": channelName,
				"addedBy":     addedByName,
			})
		}

		s.transport.PublishToChannel(channelID, socket.EventMemberAdded, map[string]interface{}{
			"channelId": channelID,
			"userIds":   users,
		}, "")
		return firstErr
	})
}

// MemberRemoved sends a removed-from-channel event to the removed user and a
// member-removed event to the channel topic.
func (s *Service) MemberRemoved(channel *repository.Channel, userID, removedByName string) {
	channelID := channel.ID
	channelName := displayName(channel)

	s.dispatcher.Submit("member_removed", func(ctx context.Context) error {
		n := &repository.Notification{
			UserID:  userID,
			Type:    TypeRemovedFromChannel,
			Title:   "Removed from channel",
			Message: fmt.Sprintf("%s removed you from %s", removedByName, channelName),
			Data: map[string]interface{}{
				"channelId": channelID,
			},
		}
		err := s.notificationRepo.Create(ctx, n)
		if err == nil {
			s.transport.PublishToUser(userID, socket.EventRemovedFromChannel, map[string]interface{}{
				"channelId":   channelID,
				"channelName": channelName,
			})
		}

		s.transport.PublishToChannel(channelID, socket.EventMemberRemoved, map[string]interface{}{
			"channelId": channelID,
			"userId":    userID,
		}, "")
		return err
	})
}

// MemberRoleChanged announces a role change to the channel and the member.
func (s *Service) MemberRoleChanged(channelID, userID, newRole string) {
	s.dispatcher.Submit("member_role_changed", func(ctx context.Context) error {
		n := &repository.Notification{
			UserID:  userID,
			Type:    TypeRoleChanged,
			Title:   "Channel role changed",
			Message: fmt.Sprintf("Your channel role is now %s", newRole),
			Data: map[string]interface{}{
				"channelId": channelID,
				"role":      newRole,
			},
		}
		err := s.notificationRepo.Create(ctx, n)

		s.transport.PublishToChannel(channelID, socket.EventMemberRoleChanged, map[string]interface{}{
			"channelId": channelID,
			"userId":    userID,
			"newRole":   newRole,
		}, "")
		return err
	})
}

// ChannelArchived announces an archive state change to the channel topic.
func (s *Service) ChannelArchived(channelID string, archived bool, actorID string) {
	s.dispatcher.Submit("channel_archived", func(ctx context.Context) error {
		s.transport.PublishToChannel(channelID, socket.EventChannelArchived, map[string]interface{}{
			"channelId": channelID,
			"archived":  archived,
			"actorId":   actorID,
		}, "")
		return nil
	})
}

// ============================================
// Helpers
// ============================================

func truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "…"
}

func displayName(channel *repository.Channel) string {
	if channel.Name != nil && *channel.Name != "" {
		return *channel.Name
	}
	return "a conversation"
}
