package service

import (
	"context"

	"github.com/opsuite/opsuite-backend/internal/repository"
	"github.com/opsuite/opsuite-backend/internal/types"
)

// ============================================
// Message Service (authoring pipeline)
// ============================================

const forwardPrefix = "[Forwarded]\n"

type AttachmentInput struct {
	FileName string `json:"fileName" binding:"required,max=255"`
	FileURL  string `json:"fileUrl" binding:"required,max=2048"`
	FileSize int64  `json:"fileSize" binding:"min=0"`
	FileType string `json:"fileType" binding:"max=100"`
}

type PostMessageInput struct {
	Content     string            `json:"content" binding:"required,max=10000"`
	ContentType string            `json:"contentType" binding:"omitempty,oneof=text file system"`
	ThreadID    *string           `json:"threadId"`
	ParentID    *string           `json:"parentId"`
	Mentions    []string          `json:"mentions" binding:"max=50"`
	Attachments []AttachmentInput `json:"attachments" binding:"max=10,dive"`
}

type ForwardMessagesInput struct {
	MessageIDs       []string `json:"messageIds" binding:"required,min=1,max=20"`
	TargetChannelIDs []string `json:"targetChannelIds" binding:"required,min=1,max=10"`
	Note             string   `json:"note" binding:"max=1000"`
}

type MessageService interface {
	PostMessage(ctx context.Context, ac *AuthContext, channelID string, input *PostMessageInput) (*repository.Message, error)
	ListMessages(ctx context.Context, ac *AuthContext, channelID string, limit, offset int) ([]*repository.Message, error)
	ForwardMessages(ctx context.Context, ac *AuthContext, input *ForwardMessagesInput) ([]*repository.Message, error)
	HideForMe(ctx context.Context, ac *AuthContext, messageID string) error
}

type messageService struct {
	messageRepo repository.MessageRepository
	channelRepo repository.ChannelRepository
	userRepo    repository.UserRepository
	notifier    Notifier
}

// NewMessageService creates a new message service
func NewMessageService(
	messageRepo repository.MessageRepository,
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		channelRepo: channelRepo,
		userRepo:    userRepo,
		notifier:    notifier,
	}
}

func (s *messageService) PostMessage(ctx context.Context, ac *AuthContext, channelID string, input *PostMessageInput) (*repository.Message, error) {
	channel, sender, err := s.requireMember(ctx, ac, channelID)
	if err != nil {
		return nil, err
	}

	if channel.AdminOnlyPost && !types.IsChannelAdmin(sender.Role) {
		return nil, ErrAdminOnlyPost
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = types.ContentText
	}

	message := &repository.Message{
		ChannelID:   channelID,
		SenderID:    ac.UserID,
		Content:     input.Content,
		ContentType: contentType,
		ThreadID:    input.ThreadID,
		ParentID:    input.ParentID,
	}

	// Mentions of non-members are dropped rather than rejected
	if len(input.Mentions) > 0 {
		message.Mentions, err = s.filterToMembers(ctx, channelID, input.Mentions)
		if err != nil {
			return nil, err
		}
	}

	if err := s.snapshotSender(ctx, ac.UserID, message); err != nil {
		return nil, err
	}

	attachments := make([]*repository.Attachment, 0, len(input.Attachments))
	for _, a := range input.Attachments {
		attachments = append(attachments, &repository.Attachment{
			ChannelID:  channelID,
			UploadedBy: ac.UserID,
			FileName:   a.FileName,
			FileURL:    a.FileURL,
			FileSize:   a.FileSize,
			FileType:   a.FileType,
		})
	}

	if err := s.messageRepo.CreateMessage(ctx, message, attachments); err != nil {
		return nil, err
	}
	message.Attachments = attachments

	// The message is durable; everything past this point is fire-and-forget
	s.notifier.MessagePosted(message)
	return message, nil
}

func (s *messageService) ListMessages(ctx context.Context, ac *AuthContext, channelID string, limit, offset int) ([]*repository.Message, error) {
	if _, _, err := s.requireMember(ctx, ac, channelID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListMessages(ctx, channelID, ac.UserID, limit, offset)
	if err != nil {
		return nil, err
	}

	// The store pages newest-first; reverse so the page reads chronologically
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *messageService) ForwardMessages(ctx context.Context, ac *AuthContext, input *ForwardMessagesInput) ([]*repository.Message, error) {
	// Load every source message up front; a missing one fails the whole call
	originals := make([]*repository.Message, 0, len(input.MessageIDs))
	for _, id := range input.MessageIDs {
		msg, err := s.messageRepo.GetMessageByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, ErrNotFound
		}
		msg.Attachments, err = s.messageRepo.GetAttachments(ctx, id)
		if err != nil {
			return nil, err
		}
		originals = append(originals, msg)
	}

	// The caller needs membership in every source channel and every target;
	// collect all denials instead of stopping at the first
	var denied []string
	checked := make(map[string]bool)
	requireAccess := func(channelID string) error {
		if checked[channelID] {
			return nil
		}
		checked[channelID] = true
		member, err := s.channelRepo.GetMember(ctx, channelID, ac.UserID)
		if err != nil {
			return err
		}
		if member == nil {
			denied = append(denied, channelID)
		}
		return nil
	}

	for _, msg := range originals {
		if err := requireAccess(msg.ChannelID); err != nil {
			return nil, err
		}
	}
	for _, targetID := range input.TargetChannelIDs {
		channel, err := s.channelRepo.GetChannelByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if channel == nil {
			return nil, ErrNotFound
		}
		if err := requireAccess(targetID); err != nil {
			return nil, err
		}
	}
	if len(denied) > 0 {
		return nil, &ChannelAccessError{ChannelIDs: denied}
	}

	snapshot := &repository.Message{}
	if err := s.snapshotSender(ctx, ac.UserID, snapshot); err != nil {
		return nil, err
	}

	// Each (message, target) pair becomes an independent new message. The
	// optional note rides on the very first forwarded message only.
	created := make([]*repository.Message, 0, len(originals)*len(input.TargetChannelIDs))
	notePending := input.Note != ""

	for _, targetID := range input.TargetChannelIDs {
		batch := make([]*repository.Message, 0, len(originals))
		for _, orig := range originals {
			content := forwardPrefix + orig.Content
			if notePending {
				content = input.Note + "\n" + content
				notePending = false
			}

			origID := orig.ID
			copyMsg := &repository.Message{
				ChannelID:         targetID,
				SenderID:          ac.UserID,
				Content:           content,
				ContentType:       orig.ContentType,
				OriginalMessageID: &origID,
				SenderName:        snapshot.SenderName,
				SenderEmail:       snapshot.SenderEmail,
				SenderAvatar:      snapshot.SenderAvatar,
				SenderRoleName:    snapshot.SenderRoleName,
			}

			// Attachments are copied by value: new rows, same file reference
			for _, a := range orig.Attachments {
				copyMsg.Attachments = append(copyMsg.Attachments, &repository.Attachment{
					ChannelID:  targetID,
					UploadedBy: ac.UserID,
					FileName:   a.FileName,
					FileURL:    a.FileURL,
					FileSize:   a.FileSize,
					FileType:   a.FileType,
				})
			}

			batch = append(batch, copyMsg)
		}

		// One transaction per target; last_message_at moves once per target
		if err := s.messageRepo.CreateForwardBatch(ctx, targetID, batch); err != nil {
			return nil, err
		}
		created = append(created, batch...)

		for _, msg := range batch {
			s.notifier.MessageForwarded(msg)
		}
	}

	return created, nil
}

func (s *messageService) HideForMe(ctx context.Context, ac *AuthContext, messageID string) error {
	message, err := s.messageRepo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message == nil {
		return ErrNotFound
	}

	member, err := s.channelRepo.GetMember(ctx, message.ChannelID, ac.UserID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotMember
	}

	return s.messageRepo.HideForUser(ctx, messageID, ac.UserID)
}

// ============================================
// Helpers
// ============================================

// snapshotSender copies the sender's current identity onto the message row.
// Reads never join back to the identity store, so the snapshot is frozen at
// send time even if the profile changes later.
func (s *messageService) snapshotSender(ctx context.Context, userID string, message *repository.Message) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	message.SenderName = user.Name
	message.SenderEmail = user.Email
	message.SenderAvatar = user.Avatar
	message.SenderRoleName = user.RoleName
	return nil
}

func (s *messageService) filterToMembers(ctx context.Context, channelID string, userIDs []string) ([]string, error) {
	memberIDs, err := s.channelRepo.GetMemberIDs(ctx, channelID)
	if err != nil {
		return nil, err
	}
	members := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = true
	}

	filtered := make([]string, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if members[id] && !seen[id] {
			seen[id] = true
			filtered = append(filtered, id)
		}
	}
	return filtered, nil
}

func (s *messageService) requireMember(ctx context.Context, ac *AuthContext, channelID string) (*repository.Channel, *repository.ChannelMember, error) {
	channel, err := s.channelRepo.GetChannelByID(ctx, channelID)
	if err != nil {
		return nil, nil, err
	}
	if channel == nil {
		return nil, nil, ErrNotFound
	}

	member, err := s.channelRepo.GetMember(ctx, channelID, ac.UserID)
	if err != nil {
		return nil, nil, err
	}
	if member == nil {
		return nil, nil, ErrNotMember
	}

	return channel, member, nil
}
