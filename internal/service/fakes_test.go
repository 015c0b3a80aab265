package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/opsuite/opsuite-backend/internal/repository"
	"github.com/opsuite/opsuite-backend/internal/types"
)

// ============================================
// In-memory fakes shared by the service tests
// ============================================

type fakeRoleRepo struct {
	roles  map[string]*repository.Role // by name
	grants map[string][]*repository.PermissionGrant
	fail   bool
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		roles:  make(map[string]*repository.Role),
		grants: make(map[string][]*repository.PermissionGrant),
	}
}

func (r *fakeRoleRepo) Create(ctx context.Context, role *repository.Role) error {
	if role.ID == "" {
		role.ID = "role-" + role.Name
	}
	r.roles[role.Name] = role
	return nil
}

func (r *fakeRoleRepo) FindByID(ctx context.Context, id string) (*repository.Role, error) {
	for _, role := range r.roles {
		if role.ID == id {
			return role, nil
		}
	}
	return nil, nil
}

func (r *fakeRoleRepo) FindByName(ctx context.Context, name string) (*repository.Role, error) {
	return r.roles[name], nil
}

func (r *fakeRoleRepo) AddPermission(ctx context.Context, grant *repository.PermissionGrant) error {
	r.grants[grant.RoleID] = append(r.grants[grant.RoleID], grant)
	return nil
}

func (r *fakeRoleRepo) GetPermissions(ctx context.Context, roleID string) ([]*repository.PermissionGrant, error) {
	if r.fail {
		return nil, errors.New("store unavailable")
	}
	return r.grants[roleID], nil
}

type fakeUserRepo struct {
	users map[string]*repository.User
}

func newFakeUserRepo(users ...*repository.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*repository.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, user *repository.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(r.users)+1)
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*repository.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*repository.User, error) {
	out := make(map[string]*repository.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakeChannelRepo struct {
	channels map[string]*repository.Channel
	members  map[string]map[string]*repository.ChannelMember
	seq      int
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{
		channels: make(map[string]*repository.Channel),
		members:  make(map[string]map[string]*repository.ChannelMember),
	}
}

func (r *fakeChannelRepo) CreateChannel(ctx context.Context, channel *repository.Channel, owner *repository.ChannelMember) error {
	r.seq++
	channel.ID = fmt.Sprintf("chan-%d", r.seq)
	channel.CreatedAt = time.Now()
	channel.MemberCount = 1
	r.channels[channel.ID] = channel

	owner.ChannelID = channel.ID
	owner.JoinedAt = time.Now()
	r.members[channel.ID] = map[string]*repository.ChannelMember{owner.UserID: owner}
	return nil
}

func (r *fakeChannelRepo) GetChannelByID(ctx context.Context, id string) (*repository.Channel, error) {
	return r.channels[id], nil
}

func (r *fakeChannelRepo) GetChannelByDirectKey(ctx context.Context, key string) (*repository.Channel, error) {
	for _, ch := range r.channels {
		if ch.DirectKey != nil && *ch.DirectKey == key {
			return ch, nil
		}
	}
	return nil, nil
}

func (r *fakeChannelRepo) ListChannelsByUser(ctx context.Context, userID string) ([]*repository.Channel, error) {
	var out []*repository.Channel
	for id, ch := range r.channels {
		if _, ok := r.members[id][userID]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (r *fakeChannelRepo) DeleteChannel(ctx context.Context, id string) error {
	delete(r.channels, id)
	delete(r.members, id)
	return nil
}

func (r *fakeChannelRepo) SetArchived(ctx context.Context, id string, archived bool, archivedBy string) error {
	ch := r.channels[id]
	if ch == nil {
		return errors.New("channel not found")
	}
	ch.IsArchived = archived
	return nil
}

func (r *fakeChannelRepo) AddMembers(ctx context.Context, channelID string, members []*repository.ChannelMember) (int, error) {
	existing := r.members[channelID]
	if existing == nil {
		existing = make(map[string]*repository.ChannelMember)
		r.members[channelID] = existing
	}

	inserted := 0
	for _, m := range members {
		if _, ok := existing[m.UserID]; ok {
			continue
		}
		m.ChannelID = channelID
		m.JoinedAt = time.Now().Add(time.Duration(len(existing)) * time.Millisecond)
		existing[m.UserID] = m
		inserted++
	}

	// The real store bumps the counter in the same transaction
	if ch := r.channels[channelID]; ch != nil {
		ch.MemberCount += inserted
	}
	return inserted, nil
}

func (r *fakeChannelRepo) GetMember(ctx context.Context, channelID, userID string) (*repository.ChannelMember, error) {
	return r.members[channelID][userID], nil
}

func (r *fakeChannelRepo) GetMembers(ctx context.Context, channelID string) ([]*repository.ChannelMember, error) {
	var out []*repository.ChannelMember
	for _, m := range r.members[channelID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := types.MemberRoleRank(out[i].Role), types.MemberRoleRank(out[j].Role)
		if ri != rj {
			return ri < rj
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (r *fakeChannelRepo) GetMemberIDs(ctx context.Context, channelID string) ([]string, error) {
	var out []string
	for id := range r.members[channelID] {
		out = append(out, id)
	}
	return out, nil
}

func (r *fakeChannelRepo) UpdateMemberRole(ctx context.Context, channelID, userID, role string) (bool, error) {
	m := r.members[channelID][userID]
	if m == nil {
		return false, nil
	}
	m.Role = role
	return true, nil
}

func (r *fakeChannelRepo) RemoveMember(ctx context.Context, channelID, userID string) (bool, error) {
	if _, ok := r.members[channelID][userID]; !ok {
		return false, nil
	}
	delete(r.members[channelID], userID)
	if ch := r.channels[channelID]; ch != nil && ch.MemberCount > 0 {
		ch.MemberCount--
	}
	return true, nil
}

func (r *fakeChannelRepo) CountMembers(ctx context.Context, channelID string) (int, error) {
	return len(r.members[channelID]), nil
}

func (r *fakeChannelRepo) ReconcileMemberCounts(ctx context.Context) (int64, error) {
	var corrected int64
	for id, ch := range r.channels {
		if ch.MemberCount != len(r.members[id]) {
			ch.MemberCount = len(r.members[id])
			corrected++
		}
	}
	return corrected, nil
}

type fakeMessageRepo struct {
	messages map[string]*repository.Message
	hidden   map[string]map[string]bool // messageID -> userID
	// lastMessageTouches counts last_message_at updates per channel
	lastMessageTouches map[string]int
	seq                int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:           make(map[string]*repository.Message),
		hidden:             make(map[string]map[string]bool),
		lastMessageTouches: make(map[string]int),
	}
}

func (r *fakeMessageRepo) insert(m *repository.Message) {
	r.seq++
	m.ID = fmt.Sprintf("msg-%d", r.seq)
	m.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	for i, a := range m.Attachments {
		a.ID = fmt.Sprintf("att-%d-%d", r.seq, i)
		a.MessageID = m.ID
	}
	r.messages[m.ID] = m
}

func (r *fakeMessageRepo) CreateMessage(ctx context.Context, message *repository.Message, attachments []*repository.Attachment) error {
	message.Attachments = attachments
	r.insert(message)
	r.lastMessageTouches[message.ChannelID]++
	return nil
}

func (r *fakeMessageRepo) CreateForwardBatch(ctx context.Context, channelID string, messages []*repository.Message) error {
	for _, m := range messages {
		r.insert(m)
	}
	r.lastMessageTouches[channelID]++
	return nil
}

func (r *fakeMessageRepo) GetMessageByID(ctx context.Context, id string) (*repository.Message, error) {
	return r.messages[id], nil
}

func (r *fakeMessageRepo) ListMessages(ctx context.Context, channelID, viewerID string, limit, offset int) ([]*repository.Message, error) {
	var out []*repository.Message
	for _, m := range r.messages {
		if m.ChannelID != channelID || m.IsTrashed || r.hidden[m.ID][viewerID] {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) GetAttachments(ctx context.Context, messageID string) ([]*repository.Attachment, error) {
	if m := r.messages[messageID]; m != nil {
		return m.Attachments, nil
	}
	return nil, nil
}

func (r *fakeMessageRepo) HideForUser(ctx context.Context, messageID, userID string) error {
	if r.hidden[messageID] == nil {
		r.hidden[messageID] = make(map[string]bool)
	}
	r.hidden[messageID][userID] = true
	return nil
}

type notifierCall struct {
	method string
	userID string
}

type fakeNotifier struct {
	calls []notifierCall
}

func (n *fakeNotifier) MessagePosted(message *repository.Message) {
	n.calls = append(n.calls, notifierCall{method: "MessagePosted"})
}

func (n *fakeNotifier) MessageForwarded(message *repository.Message) {
	n.calls = append(n.calls, notifierCall{method: "MessageForwarded"})
}

func (n *fakeNotifier) MembersAdded(channel *repository.Channel, addedIDs []string, addedByName string) {
	n.calls = append(n.calls, notifierCall{method: "MembersAdded"})
}

func (n *fakeNotifier) MemberRemoved(channel *repository.Channel, userID, removedByName string) {
	n.calls = append(n.calls, notifierCall{method: "MemberRemoved", userID: userID})
}

func (n *fakeNotifier) MemberRoleChanged(channelID, userID, newRole string) {
	n.calls = append(n.calls, notifierCall{method: "MemberRoleChanged", userID: userID})
}

func (n *fakeNotifier) ChannelArchived(channelID string, archived bool, actorID string) {
	n.calls = append(n.calls, notifierCall{method: "ChannelArchived"})
}

func (n *fakeNotifier) count(method string) int {
	c := 0
	for _, call := range n.calls {
		if call.method == method {
			c++
		}
	}
	return c
}
