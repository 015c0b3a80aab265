package service

import (
	"context"
	"sort"
	"strings"

	"github.com/opsuite/opsuite-backend/internal/repository"
	"github.com/opsuite/opsuite-backend/internal/types"
)

// ============================================
// Channel Service (lifecycle + membership)
// ============================================

type CreateChannelInput struct {
	Name                 string   `json:"name" binding:"required_unless=Type direct,max=100"`
	Type                 string   `json:"type" binding:"required"`
	IsPrivate            bool     `json:"isPrivate"`
	AdminOnlyAdd         bool     `json:"adminOnlyAdd"`
	AdminOnlyPost        bool     `json:"adminOnlyPost"`
	AllowExternalMembers bool     `json:"allowExternalMembers"`
	DepartmentID         *string  `json:"departmentId"`
	ProjectID            *string  `json:"projectId"`
	MemberIDs            []string `json:"memberIds" binding:"max=100"`
}

type AddMembersInput struct {
	UserIDs []string `json:"userIds" binding:"required,min=1,max=100"`
	Role    string   `json:"role" binding:"omitempty,oneof=admin member"`
}

type ChannelService interface {
	CreateChannel(ctx context.Context, ac *AuthContext, input *CreateChannelInput) (*repository.Channel, error)
	GetOrCreateDirect(ctx context.Context, ac *AuthContext, otherUserID string) (*repository.Channel, error)
	GetChannel(ctx context.Context, ac *AuthContext, channelID string) (*repository.Channel, error)
	ListChannels(ctx context.Context, ac *AuthContext) ([]*repository.Channel, error)
	DeleteChannel(ctx context.Context, ac *AuthContext, channelID string) error
	Archive(ctx context.Context, ac *AuthContext, channelID, action string) (*repository.Channel, error)

	ListMembers(ctx context.Context, ac *AuthContext, channelID string) ([]*repository.ChannelMember, error)
	AddMembers(ctx context.Context, ac *AuthContext, channelID string, input *AddMembersInput) ([]string, error)
	UpdateMemberRole(ctx context.Context, ac *AuthContext, channelID, memberID, role string) error
	RemoveMember(ctx context.Context, ac *AuthContext, channelID, memberID string) error
}

type channelService struct {
	channelRepo repository.ChannelRepository
	userRepo    repository.UserRepository
	permissions PermissionService
	notifier    Notifier
}

// NewChannelService creates a new channel service
func NewChannelService(
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	permissions PermissionService,
	notifier Notifier,
) ChannelService {
	return &channelService{
		channelRepo: channelRepo,
		userRepo:    userRepo,
		permissions: permissions,
		notifier:    notifier,
	}
}

// ============================================
// Lifecycle
// ============================================

func (s *channelService) CreateChannel(ctx context.Context, ac *AuthContext, input *CreateChannelInput) (*repository.Channel, error) {
	if err := s.permissions.Authorize(ctx, ac, types.ResourceChannels, types.ActionCreate, []string{"manager"}); err != nil {
		return nil, err
	}

	if !types.IsValidChannelType(input.Type) {
		return nil, ErrInvalidInput
	}
	if input.Type == types.ChannelDirect {
		// Direct channels go through GetOrCreateDirect so the sorted-pair
		// key keeps them unique.
		return nil, ErrInvalidInput
	}

	channel := &repository.Channel{
		Type:                 input.Type,
		IsPrivate:            input.IsPrivate,
		AdminOnlyAdd:         input.AdminOnlyAdd,
		AdminOnlyPost:        input.AdminOnlyPost,
		AllowExternalMembers: input.AllowExternalMembers,
		DepartmentID:         input.DepartmentID,
		ProjectID:            input.ProjectID,
		CreatedBy:            ac.UserID,
	}
	if input.Name != "" {
		channel.Name = &input.Name
	}

	owner := &repository.ChannelMember{
		UserID:   ac.UserID,
		Role:     types.MemberRoleOwner,
		AddedVia: types.AddedViaManual,
	}

	if err := s.channelRepo.CreateChannel(ctx, channel, owner); err != nil {
		return nil, err
	}

	if len(input.MemberIDs) > 0 {
		if _, err := s.addMembersUnchecked(ctx, ac, channel, input.MemberIDs, types.MemberRoleMember, types.AddedViaAuto); err != nil {
			// The channel itself is created; initial members are best effort
			// against duplicate / unknown ids in the request.
			if err != ErrAllMembersExist {
				return nil, err
			}
		}
	}

	return channel, nil
}

func (s *channelService) GetOrCreateDirect(ctx context.Context, ac *AuthContext, otherUserID string) (*repository.Channel, error) {
	if otherUserID == "" || otherUserID == ac.UserID {
		return nil, ErrInvalidInput
	}

	other, err := s.userRepo.FindByID(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	key := directKey(ac.UserID, otherUserID)
	existing, err := s.channelRepo.GetChannelByDirectKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	channel := &repository.Channel{
		Type:      types.ChannelDirect,
		IsPrivate: true,
		DirectKey: &key,
		CreatedBy: ac.UserID,
	}
	owner := &repository.ChannelMember{
		UserID:   ac.UserID,
		Role:     types.MemberRoleOwner,
		AddedVia: types.AddedViaAuto,
	}
	if err := s.channelRepo.CreateChannel(ctx, channel, owner); err != nil {
		return nil, err
	}

	peer := &repository.ChannelMember{
		UserID:   otherUserID,
		Role:     types.MemberRoleMember,
		AddedBy:  &ac.UserID,
		AddedVia: types.AddedViaAuto,
	}
	if _, err := s.channelRepo.AddMembers(ctx, channel.ID, []*repository.ChannelMember{peer}); err != nil {
		return nil, err
	}

	s.notifier.MembersAdded(channel, []string{otherUserID}, s.callerName(ctx, ac))
	return channel, nil
}

func (s *channelService) GetChannel(ctx context.Context, ac *AuthContext, channelID string) (*repository.Channel, error) {
	channel, _, err := s.requireMember(ctx, ac, channelID)
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (s *channelService) ListChannels(ctx context.Context, ac *AuthContext) ([]*repository.Channel, error) {
	return s.channelRepo.ListChannelsByUser(ctx, ac.UserID)
}

func (s *channelService) DeleteChannel(ctx context.Context, ac *AuthContext, channelID string) error {
	channel, err := s.channelRepo.GetChannelByID(ctx, channelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return ErrNotFound
	}

	if channel.CreatedBy != ac.UserID && ac.RoleName != types.SystemRoleSuperAdmin {
		return ErrForbidden
	}

	return s.channelRepo.DeleteChannel(ctx, channelID)
}

func (s *channelService) Archive(ctx context.Context, ac *AuthContext, channelID, action string) (*repository.Channel, error) {
	if action != types.ArchiveActionArchive && action != types.ArchiveActionUnarchive {
		return nil, ErrInvalidInput
	}

	channel, err := s.channelRepo.GetChannelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrNotFound
	}

	if !s.canArchive(ctx, ac, channel) {
		return nil, ErrForbidden
	}

	archiving := action == types.ArchiveActionArchive
	if archiving && channel.IsArchived {
		return nil, ErrAlreadyArchived
	}
	if !archiving && !channel.IsArchived {
		return nil, ErrNotArchived
	}

	if err := s.channelRepo.SetArchived(ctx, channelID, archiving, ac.UserID); err != nil {
		return nil, err
	}

	channel.IsArchived = archiving
	s.notifier.ChannelArchived(channelID, archiving, ac.UserID)
	return channel, nil
}

// canArchive allows the channel creator, an admin/owner member, or a
// super-admin caller.
func (s *channelService) canArchive(ctx context.Context, ac *AuthContext, channel *repository.Channel) bool {
	if ac.RoleName == types.SystemRoleSuperAdmin {
		return true
	}
	if channel.CreatedBy == ac.UserID {
		return true
	}
	member, err := s.channelRepo.GetMember(ctx, channel.ID, ac.UserID)
	if err != nil || member == nil {
		return false
	}
	return types.IsChannelAdmin(member.Role)
}

// ============================================
// Membership
// ============================================

func (s *channelService) ListMembers(ctx context.Context, ac *AuthContext, channelID string) ([]*repository.ChannelMember, error) {
	if _, _, err := s.requireMember(ctx, ac, channelID); err != nil {
		return nil, err
	}

	members, err := s.channelRepo.GetMembers(ctx, channelID)
	if err != nil {
		return nil, err
	}

	// Enrich with identity fields in a single batched lookup
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		m.User = users[m.UserID]
	}

	return members, nil
}

func (s *channelService) AddMembers(ctx context.Context, ac *AuthContext, channelID string, input *AddMembersInput) ([]string, error) {
	channel, caller, err := s.requireMember(ctx, ac, channelID)
	if err != nil {
		return nil, err
	}

	if channel.AdminOnlyAdd && !types.IsChannelAdmin(caller.Role) {
		return nil, ErrAdminOnlyAdd
	}

	role := input.Role
	if role == "" {
		role = types.MemberRoleMember
	}
	// A channel has exactly one owner; new members can only hold admin or
	// member.
	if role == types.MemberRoleOwner || !types.IsValidMemberRole(role) {
		return nil, ErrInvalidInput
	}

	return s.addMembersUnchecked(ctx, ac, channel, input.UserIDs, role, types.AddedViaManual)
}

// addMembersUnchecked runs the dedupe / identity / department pipeline and
// the atomic batch insert. Caller authorization has already happened.
func (s *channelService) addMembersUnchecked(ctx context.Context, ac *AuthContext, channel *repository.Channel, userIDs []string, role, via string) ([]string, error) {
	// Verify every requested identity exists before touching membership
	users, err := s.userRepo.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		if users[id] == nil {
			return nil, ErrUserNotFound
		}
	}

	// Drop users who are already members; only an empty remainder is an error
	existingIDs, err := s.channelRepo.GetMemberIDs(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	newIDs := make([]string, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if existing[id] || seen[id] {
			continue
		}
		seen[id] = true
		newIDs = append(newIDs, id)
	}
	if len(newIDs) == 0 {
		return nil, ErrAllMembersExist
	}

	// Department restriction for channels that do not admit external members
	if !channel.AllowExternalMembers && channel.DepartmentID != nil {
		for _, id := range newIDs {
			u := users[id]
			if u.DepartmentID == nil || *u.DepartmentID != *channel.DepartmentID {
				return nil, ErrExternalMembersNotAllowed
			}
		}
	}

	members := make([]*repository.ChannelMember, 0, len(newIDs))
	for _, id := range newIDs {
		members = append(members, &repository.ChannelMember{
			UserID:   id,
			Role:     role,
			AddedBy:  &ac.UserID,
			AddedVia: via,
		})
	}
	if _, err := s.channelRepo.AddMembers(ctx, channel.ID, members); err != nil {
		return nil, err
	}

	s.notifier.MembersAdded(channel, newIDs, s.callerName(ctx, ac))
	return newIDs, nil
}

func (s *channelService) UpdateMemberRole(ctx context.Context, ac *AuthContext, channelID, memberID, role string) error {
	_, caller, err := s.requireMember(ctx, ac, channelID)
	if err != nil {
		return err
	}
	if !types.IsChannelAdmin(caller.Role) {
		return ErrForbidden
	}

	if role == types.MemberRoleOwner || !types.IsValidMemberRole(role) {
		return ErrInvalidInput
	}

	// Re-check the target right before the write; it may have been removed
	// by a concurrent request.
	target, err := s.channelRepo.GetMember(ctx, channelID, memberID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}
	if target.Role == types.MemberRoleOwner {
		return ErrOwnerProtected
	}

	updated, err := s.channelRepo.UpdateMemberRole(ctx, channelID, memberID, role)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}

	s.notifier.MemberRoleChanged(channelID, memberID, role)
	return nil
}

func (s *channelService) RemoveMember(ctx context.Context, ac *AuthContext, channelID, memberID string) error {
	channel, caller, err := s.requireMember(ctx, ac, channelID)
	if err != nil {
		return err
	}
	if !types.IsChannelAdmin(caller.Role) {
		return ErrForbidden
	}

	target, err := s.channelRepo.GetMember(ctx, channelID, memberID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}
	if target.Role == types.MemberRoleOwner {
		return ErrOwnerProtected
	}

	removed, err := s.channelRepo.RemoveMember(ctx, channelID, memberID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}

	s.notifier.MemberRemoved(channel, memberID, s.callerName(ctx, ac))
	return nil
}

// ============================================
// Helpers
// ============================================

// requireMember loads the channel and asserts the caller currently belongs
// to it. Most membership operations start here.
func (s *channelService) requireMember(ctx context.Context, ac *AuthContext, channelID string) (*repository.Channel, *repository.ChannelMember, error) {
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

func (s *channelService) callerName(ctx context.Context, ac *AuthContext) string {
	user, err := s.userRepo.FindByID(ctx, ac.UserID)
	if err != nil || user == nil {
		return "Someone"
	}
	return user.Name
}

// directKey derives the unique key for a 1:1 channel from the sorted pair of
// participant ids, so the same two users always resolve to the same channel.
func directKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}
