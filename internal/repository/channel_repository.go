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
// Channel Models
// ============================================

// Channel represents a conversation scope (direct, project, department, ...)
type Channel struct {
	ID                   string     `json:"id"`
	Name                 *string    `json:"name,omitempty"`
	Type                 string     `json:"type"`
	IsPrivate            bool       `json:"isPrivate"`
	AdminOnlyAdd         bool       `json:"adminOnlyAdd"`
	AdminOnlyPost        bool       `json:"adminOnlyPost"`
	AllowExternalMembers bool       `json:"allowExternalMembers"`
	DepartmentID         *string    `json:"departmentId,omitempty"`
	ProjectID            *string    `json:"projectId,omitempty"`
	DirectKey            *string    `json:"-"`
	CreatedBy            string     `json:"createdBy"`
	MemberCount          int        `json:"memberCount"`
	LastMessageAt        *time.Time `json:"lastMessageAt,omitempty"`
	IsArchived           bool       `json:"isArchived"`
	ArchivedAt           *time.Time `json:"archivedAt,omitempty"`
	ArchivedBy           *string    `json:"archivedBy,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// ChannelMember represents channel membership. (channel_id, user_id) is unique.
type ChannelMember struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
	AddedBy   *string   `json:"addedBy,omitempty"`
	AddedVia  string    `json:"addedVia"`
	User      *User     `json:"user,omitempty"`
}

// ============================================
// Channel Repository Interface
// ============================================

// ChannelRepository owns channel and membership rows
type ChannelRepository interface {
	// Channel operations
	CreateChannel(ctx context.Context, channel *Channel, owner *ChannelMember) error
	GetChannelByID(ctx context.Context, id string) (*Channel, error)
	GetChannelByDirectKey(ctx context.Context, key string) (*Channel, error)
	ListChannelsByUser(ctx context.Context, userID string) ([]*Channel, error)
	DeleteChannel(ctx context.Context, id string) error
	SetArchived(ctx context.Context, id string, archived bool, archivedBy string) error

	// Member operations
	AddMembers(ctx context.Context, channelID string, members []*ChannelMember) (int, error)
	GetMember(ctx context.Context, channelID, userID string) (*ChannelMember, error)
	GetMembers(ctx context.Context, channelID string) ([]*ChannelMember, error)
	GetMemberIDs(ctx context.Context, channelID string) ([]string, error)
	UpdateMemberRole(ctx context.Context, channelID, userID, role string) (bool, error)
	RemoveMember(ctx context.Context, channelID, userID string) (bool, error)
	CountMembers(ctx context.Context, channelID string) (int, error)

	// Maintenance: recompute member_count from live membership rows
	ReconcileMemberCounts(ctx context.Context) (int64, error)
}

// ============================================
// PostgreSQL Implementation
// ============================================

type channelRepository struct {
	pool *pgxpool.Pool
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(pool *pgxpool.Pool) ChannelRepository {
	return &channelRepository{pool: pool}
}

const channelColumns = `id, name, type, is_private, admin_only_add, admin_only_post, allow_external_members,
	department_id, project_id, direct_key, created_by, member_count, last_message_at,
	is_archived, archived_at, archived_by, created_at, updated_at`

func scanChannel(row pgx.Row) (*Channel, error) {
	c := &Channel{}
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.IsPrivate, &c.AdminOnlyAdd, &c.AdminOnlyPost, &c.AllowExternalMembers,
		&c.DepartmentID, &c.ProjectID, &c.DirectKey, &c.CreatedBy, &c.MemberCount, &c.LastMessageAt,
		&c.IsArchived, &c.ArchivedAt, &c.ArchivedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateChannel inserts the channel and its owner membership in one transaction.
func (r *channelRepository) CreateChannel(ctx context.Context, channel *Channel, owner *ChannelMember) error {
	channel.ID = uuid.New().String()
	channel.CreatedAt = time.Now()
	channel.UpdatedAt = time.Now()
	channel.MemberCount = 1

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO channels (id, name, type, is_private, admin_only_add, admin_only_post, allow_external_members,
			department_id, project_id, direct_key, created_by, member_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, channel.ID, channel.Name, channel.Type, channel.IsPrivate, channel.AdminOnlyAdd, channel.AdminOnlyPost,
		channel.AllowExternalMembers, channel.DepartmentID, channel.ProjectID, channel.DirectKey,
		channel.CreatedBy, channel.MemberCount, channel.CreatedAt, channel.UpdatedAt)
	if err != nil {
		return err
	}

	owner.ID = uuid.New().String()
	owner.ChannelID = channel.ID
	owner.JoinedAt = time.Now()

	_, err = tx.Exec(ctx, `
		INSERT INTO channel_members (id, channel_id, user_id, role, joined_at, added_by, added_via)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, owner.ID, owner.ChannelID, owner.UserID, owner.Role, owner.JoinedAt, owner.AddedBy, owner.AddedVia)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *channelRepository) GetChannelByID(ctx context.Context, id string) (*Channel, error) {
	channel, err := scanChannel(r.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return channel, err
}

func (r *channelRepository) GetChannelByDirectKey(ctx context.Context, key string) (*Channel, error) {
	channel, err := scanChannel(r.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE direct_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return channel, err
}

func (r *channelRepository) ListChannelsByUser(ctx context.Context, userID string) ([]*Channel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.type, c.is_private, c.admin_only_add, c.admin_only_post, c.allow_external_members,
			c.department_id, c.project_id, c.direct_key, c.created_by, c.member_count, c.last_message_at,
			c.is_archived, c.archived_at, c.archived_by, c.created_at, c.updated_at
		FROM channels c
		INNER JOIN channel_members m ON c.id = m.channel_id
		WHERE m.user_id = $1
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}

func (r *channelRepository) DeleteChannel(ctx context.Context, id string) error {
	// Members, messages and attachments cascade at the schema level.
	_, err := r.pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	return err
}

func (r *channelRepository) SetArchived(ctx context.Context, id string, archived bool, archivedBy string) error {
	if archived {
		_, err := r.pool.Exec(ctx, `
			UPDATE channels SET is_archived = TRUE, archived_at = NOW(), archived_by = $2, updated_at = NOW()
			WHERE id = $1
		`, id, archivedBy)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE channels SET is_archived = FALSE, archived_at = NULL, archived_by = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// ============================================
// Member operations
// ============================================

// AddMembers inserts all rows and bumps member_count in a single transaction,
// so the counter cannot drift from the membership rows under concurrent adds.
// Rows racing an identical insert are skipped (ON CONFLICT) and not counted.
func (r *channelRepository) AddMembers(ctx context.Context, channelID string, members []*ChannelMember) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, member := range members {
		member.ID = uuid.New().String()
		member.ChannelID = channelID
		member.JoinedAt = time.Now()

		tag, err := tx.Exec(ctx, `
			INSERT INTO channel_members (id, channel_id, user_id, role, joined_at, added_by, added_via)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (channel_id, user_id) DO NOTHING
		`, member.ID, member.ChannelID, member.UserID, member.Role, member.JoinedAt, member.AddedBy, member.AddedVia)
		if err != nil {
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}

	if inserted > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE channels SET member_count = member_count + $2, updated_at = NOW() WHERE id = $1
		`, channelID, inserted)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *channelRepository) GetMember(ctx context.Context, channelID, userID string) (*ChannelMember, error) {
	member := &ChannelMember{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, channel_id, user_id, role, joined_at, added_by, added_via
		FROM channel_members WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID).Scan(&member.ID, &member.ChannelID, &member.UserID, &member.Role,
		&member.JoinedAt, &member.AddedBy, &member.AddedVia)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

// GetMembers returns members ordered by role rank (owner, admins, members),
// then join time ascending.
func (r *channelRepository) GetMembers(ctx context.Context, channelID string) ([]*ChannelMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, channel_id, user_id, role, joined_at, added_by, added_via
		FROM channel_members
		WHERE channel_id = $1
		ORDER BY CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, joined_at ASC
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*ChannelMember
	for rows.Next() {
		member := &ChannelMember{}
		if err := rows.Scan(&member.ID, &member.ChannelID, &member.UserID, &member.Role,
			&member.JoinedAt, &member.AddedBy, &member.AddedVia); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *channelRepository) GetMemberIDs(ctx context.Context, channelID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id FROM channel_members WHERE channel_id = $1
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *channelRepository) UpdateMemberRole(ctx context.Context, channelID, userID, role string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE channel_members SET role = $3 WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID, role)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveMember deletes the row and decrements member_count in one transaction.
func (r *channelRepository) RemoveMember(ctx context.Context, channelID, userID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE channels SET member_count = GREATEST(member_count - 1, 0), updated_at = NOW() WHERE id = $1
	`, channelID)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *channelRepository) CountMembers(ctx context.Context, channelID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM channel_members WHERE channel_id = $1
	`, channelID).Scan(&count)
	return count, err
}

// ReconcileMemberCounts heals any channel whose denormalized counter has
// drifted from the true membership row count. Returns the number of channels
// corrected.
func (r *channelRepository) ReconcileMemberCounts(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE channels c SET member_count = m.actual
		FROM (
			SELECT ch.id, COUNT(cm.id) AS actual
			FROM channels ch
			LEFT JOIN channel_members cm ON cm.channel_id = ch.id
			GROUP BY ch.id
		) m
		WHERE c.id = m.id AND c.member_count <> m.actual
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
