package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================
// Message Models
// ============================================

// Message carries a denormalized sender snapshot captured at write time so
// the read path never joins against the identity store. The snapshot is
// intentionally never re-synchronized after the sender's profile changes.
type Message struct {
	ID          string   `json:"id"`
	ChannelID   string   `json:"channelId"`
	SenderID    string   `json:"senderId"`
	Content     string   `json:"content"`
	ContentType string   `json:"contentType"`
	ThreadID    *string  `json:"threadId,omitempty"`
	ParentID    *string  `json:"parentId,omitempty"`
	Mentions    []string `json:"mentions,omitempty"`

	SenderName     string `json:"senderName"`
	SenderEmail    string `json:"senderEmail"`
	SenderAvatar   string `json:"senderAvatar"`
	SenderRoleName string `json:"senderRoleName"`

	OriginalMessageID *string   `json:"originalMessageId,omitempty"`
	IsEdited          bool      `json:"isEdited"`
	IsTrashed         bool      `json:"isTrashed"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`

	Attachments []*Attachment `json:"attachments,omitempty"`
}

// Attachment metadata rows are copied by value when a message is forwarded;
// the file reference itself is shared.
type Attachment struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"messageId"`
	ChannelID  string    `json:"channelId"`
	UploadedBy string    `json:"uploadedBy"`
	FileName   string    `json:"fileName"`
	FileURL    string    `json:"fileUrl"`
	FileSize   int64     `json:"fileSize"`
	FileType   string    `json:"fileType"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ============================================
// Message Repository Interface
// ============================================

type MessageRepository interface {
	CreateMessage(ctx context.Context, message *Message, attachments []*Attachment) error
	CreateForwardBatch(ctx context.Context, channelID string, messages []*Message) error
	GetMessageByID(ctx context.Context, id string) (*Message, error)
	ListMessages(ctx context.Context, channelID, viewerID string, limit, offset int) ([]*Message, error)
	GetAttachments(ctx context.Context, messageID string) ([]*Attachment, error)
	HideForUser(ctx context.Context, messageID, userID string) error
}

// ============================================
// PostgreSQL Implementation
// ============================================

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

const messageColumns = `id, channel_id, sender_id, content, content_type, thread_id, parent_id, mentions,
	sender_name, sender_email, sender_avatar, sender_role_name, original_message_id,
	is_edited, is_trashed, created_at, updated_at`

func scanMessage(row pgx.Row) (*Message, error) {
	m := &Message{}
	err := row.Scan(&m.ID, &m.ChannelID, &m.SenderID, &m.Content, &m.ContentType, &m.ThreadID, &m.ParentID,
		&m.Mentions, &m.SenderName, &m.SenderEmail, &m.SenderAvatar, &m.SenderRoleName, &m.OriginalMessageID,
		&m.IsEdited, &m.IsTrashed, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, message *Message) error {
	message.ID = uuid.New().String()
	message.CreatedAt = time.Now()
	message.UpdatedAt = message.CreatedAt
	if message.Mentions == nil {
		message.Mentions = []string{}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO messages (id, channel_id, sender_id, content, content_type, thread_id, parent_id, mentions,
			sender_name, sender_email, sender_avatar, sender_role_name, original_message_id,
			is_edited, is_trashed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, message.ID, message.ChannelID, message.SenderID, message.Content, message.ContentType,
		message.ThreadID, message.ParentID, message.Mentions,
		message.SenderName, message.SenderEmail, message.SenderAvatar, message.SenderRoleName,
		message.OriginalMessageID, message.IsEdited, message.IsTrashed, message.CreatedAt, message.UpdatedAt)
	return err
}

func insertAttachments(ctx context.Context, tx pgx.Tx, message *Message, attachments []*Attachment) error {
	for _, att := range attachments {
		att.ID = uuid.New().String()
		att.MessageID = message.ID
		att.ChannelID = message.ChannelID
		att.CreatedAt = time.Now()

		_, err := tx.Exec(ctx, `
			INSERT INTO attachments (id, message_id, channel_id, uploaded_by, file_name, file_url, file_size, file_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, att.ID, att.MessageID, att.ChannelID, att.UploadedBy, att.FileName, att.FileURL, att.FileSize, att.FileType, att.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// CreateMessage persists the message, its attachment metadata and the
// channel's last_message_at in one transaction. The caller may respond as
// soon as this returns; fan-out happens afterwards and is never awaited.
func (r *messageRepository) CreateMessage(ctx context.Context, message *Message, attachments []*Attachment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertMessage(ctx, tx, message); err != nil {
		return err
	}
	if err := insertAttachments(ctx, tx, message, attachments); err != nil {
		return err
	}
	message.Attachments = attachments

	_, err = tx.Exec(ctx, `UPDATE channels SET last_message_at = NOW() WHERE id = $1`, message.ChannelID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CreateForwardBatch inserts all forwarded copies for one target channel and
// touches the channel's last_message_at exactly once.
func (r *messageRepository) CreateForwardBatch(ctx context.Context, channelID string, messages []*Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, message := range messages {
		message.ChannelID = channelID
		if err := insertMessage(ctx, tx, message); err != nil {
			return err
		}
		if err := insertAttachments(ctx, tx, message, message.Attachments); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `UPDATE channels SET last_message_at = NOW() WHERE id = $1`, channelID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *messageRepository) GetMessageByID(ctx context.Context, id string) (*Message, error) {
	message, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return message, err
}

// ListMessages returns a page of messages newest-first, excluding trashed
// rows and rows the viewer has hidden for themselves.
func (r *messageRepository) ListMessages(ctx context.Context, channelID, viewerID string, limit, offset int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.channel_id, m.sender_id, m.content, m.content_type, m.thread_id, m.parent_id, m.mentions,
			m.sender_name, m.sender_email, m.sender_avatar, m.sender_role_name, m.original_message_id,
			m.is_edited, m.is_trashed, m.created_at, m.updated_at
		FROM messages m
		WHERE m.channel_id = $1
			AND m.is_trashed = FALSE
			AND NOT EXISTS (
				SELECT 1 FROM message_hidden h WHERE h.message_id = m.id AND h.user_id = $2
			)
		ORDER BY m.created_at DESC
		LIMIT $3 OFFSET $4
	`, channelID, viewerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func (r *messageRepository) GetAttachments(ctx context.Context, messageID string) ([]*Attachment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, message_id, channel_id, uploaded_by, file_name, file_url, file_size, file_type, created_at
		FROM attachments WHERE message_id = $1
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []*Attachment
	for rows.Next() {
		att := &Attachment{}
		if err := rows.Scan(&att.ID, &att.MessageID, &att.ChannelID, &att.UploadedBy,
			&att.FileName, &att.FileURL, &att.FileSize, &att.FileType, &att.CreatedAt); err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}
	return attachments, rows.Err()
}

// HideForUser soft-hides a message for one viewer only.
func (r *messageRepository) HideForUser(ctx context.Context, messageID, userID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO message_hidden (message_id, user_id, hidden_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, messageID, userID)
	return err
}
