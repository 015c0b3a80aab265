package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsuite/opsuite-backend/internal/repository"
	"github.com/opsuite/opsuite-backend/internal/types"
)

type channelFixture struct {
	svc         ChannelService
	channelRepo *fakeChannelRepo
	userRepo    *fakeUserRepo
	notifier    *fakeNotifier
}

func newChannelFixture(t *testing.T, users ...*repository.User) *channelFixture {
	t.Helper()
	f := &channelFixture{
		channelRepo: newFakeChannelRepo(),
		userRepo:    newFakeUserRepo(users...),
		notifier:    &fakeNotifier{},
	}
	f.svc = NewChannelService(f.channelRepo, f.userRepo, NewPermissionService(newFakeRoleRepo()), f.notifier)
	return f
}

func managerCtx(userID string) *AuthContext {
	return &AuthContext{UserID: userID, RoleName: "manager"}
}

func testUsers(ids ...string) []*repository.User {
	users := make([]*repository.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, &repository.User{ID: id, Name: "User " + id, Email: id + "@opsuite.dev"})
	}
	return users
}

func mustCreateChannel(t *testing.T, f *channelFixture, owner string, input *CreateChannelInput) *repository.Channel {
	t.Helper()
	channel, err := f.svc.CreateChannel(context.Background(), managerCtx(owner), input)
	require.NoError(t, err)
	return channel
}

func TestCreateChannelMakesCallerOwner(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup})

	member, err := f.channelRepo.GetMember(context.Background(), channel.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, types.MemberRoleOwner, member.Role)
	assert.Equal(t, 1, channel.MemberCount)
}

func TestCreateChannelRejectsDirectType(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice")...)
	_, err := f.svc.CreateChannel(context.Background(), managerCtx("alice"), &CreateChannelInput{Type: types.ChannelDirect})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetOrCreateDirectIsIdempotent(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "bob")...)

	first, err := f.svc.GetOrCreateDirect(context.Background(), managerCtx("alice"), "bob")
	require.NoError(t, err)

	// The same pair resolves to the same channel regardless of direction
	second, err := f.svc.GetOrCreateDirect(context.Background(), managerCtx("bob"), "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAddMembersDeduplicatesSilently(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "bob", "carol")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup})

	added, err := f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{
		UserIDs: []string{"bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, added)

	// bob is already in; only carol should land
	added, err = f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{
		UserIDs: []string{"bob", "carol"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, added)
}

func TestAddMembersAllAlreadyPresentIsAnError(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "bob")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup})

	_, err := f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{UserIDs: []string{"bob"}})
	require.NoError(t, err)

	_, err = f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{UserIDs: []string{"bob", "alice"}})
	assert.ErrorIs(t, err, ErrAllMembersExist)
}

func TestAddMembersUnknownIdentityRejected(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup})

	_, err := f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{UserIDs: []string{"ghost"}})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAddMembersAdminOnlyAdd(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "bob", "carol")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{
		Name: "ops", Type: types.ChannelGroup, AdminOnlyAdd: true, MemberIDs: []string{"bob"},
	})

	_, err := f.svc.AddMembers(context.Background(), managerCtx("bob"), channel.ID, &AddMembersInput{UserIDs: []string{"carol"}})
	assert.ErrorIs(t, err, ErrAdminOnlyAdd)

	// Promote bob; the same call now passes
	require.NoError(t, f.svc.UpdateMemberRole(context.Background(), managerCtx("alice"), channel.ID, "bob", types.MemberRoleAdmin))
	_, err = f.svc.AddMembers(context.Background(), managerCtx("bob"), channel.ID, &AddMembersInput{UserIDs: []string{"carol"}})
	assert.NoError(t, err)
}

func TestAddMembersDepartmentRestriction(t *testing.T) {
	sales := "dept-sales"
	support := "dept-support"

	alice := &repository.User{ID: "alice", Name: "Alice", DepartmentID: &sales}
	bob := &repository.User{ID: "bob", Name: "Bob", DepartmentID: &support}
	carol := &repository.User{ID: "carol", Name: "Carol", DepartmentID: &sales}

	f := newChannelFixture(t, alice, bob, carol)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{
		Name: "sales-floor", Type: types.ChannelDepartment, DepartmentID: &sales,
	})

	_, err := f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{UserIDs: []string{"bob"}})
	assert.ErrorIs(t, err, ErrExternalMembersNotAllowed)

	_, err = f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{UserIDs: []string{"carol"}})
	assert.NoError(t, err)
}

func TestAddMembersExternalAllowedWhenFlagSet(t *testing.T) {
	sales := "dept-sales"
	support := "dept-support"

	alice := &repository.User{ID: "alice", Name: "Alice", DepartmentID: &sales}
	bob := &repository.User{ID: "bob", Name: "Bob", DepartmentID: &support}

	f := newChannelFixture(t, alice, bob)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{
		Name: "cross-team", Type: types.ChannelDepartment, DepartmentID: &sales, AllowExternalMembers: true,
	})

	_, err := f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{UserIDs: []string{"bob"}})
	assert.NoError(t, err)
}

func TestOwnerRoleIsImmutable(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "bob")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup, MemberIDs: []string{"bob"}})

	// Even a channel admin cannot demote or remove the owner
	require.NoError(t, f.svc.UpdateMemberRole(context.Background(), managerCtx("alice"), channel.ID, "bob", types.MemberRoleAdmin))

	err := f.svc.UpdateMemberRole(context.Background(), managerCtx("bob"), channel.ID, "alice", types.MemberRoleMember)
	assert.ErrorIs(t, err, ErrOwnerProtected)

	err = f.svc.RemoveMember(context.Background(), managerCtx("bob"), channel.ID, "alice")
	assert.ErrorIs(t, err, ErrOwnerProtected)

	// No second owner can be minted through role updates
	err = f.svc.UpdateMemberRole(context.Background(), managerCtx("alice"), channel.ID, "bob", types.MemberRoleOwner)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMemberCountTracksAddsAndRemoves(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "b1", "b2", "b3", "b4")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup})

	_, err := f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{
		UserIDs: []string{"b1", "b2", "b3", "b4"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveMember(context.Background(), managerCtx("alice"), channel.ID, "b3"))
	require.NoError(t, f.svc.RemoveMember(context.Background(), managerCtx("alice"), channel.ID, "b4"))

	// initial 1 + 4 adds - 2 removes
	rows, err := f.channelRepo.CountMembers(context.Background(), channel.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, rows, f.channelRepo.channels[channel.ID].MemberCount)
}

func TestListMembersOrderingAndEnrichment(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "bob", "carol", "dave")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup})

	_, err := f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{UserIDs: []string{"bob"}})
	require.NoError(t, err)
	_, err = f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{UserIDs: []string{"carol"}, Role: types.MemberRoleAdmin})
	require.NoError(t, err)
	_, err = f.svc.AddMembers(context.Background(), managerCtx("alice"), channel.ID, &AddMembersInput{UserIDs: []string{"dave"}})
	require.NoError(t, err)

	members, err := f.svc.ListMembers(context.Background(), managerCtx("alice"), channel.ID)
	require.NoError(t, err)
	require.Len(t, members, 4)

	// owner first, then admins, then members by join time
	assert.Equal(t, "alice", members[0].UserID)
	assert.Equal(t, "carol", members[1].UserID)
	assert.Equal(t, "bob", members[2].UserID)
	assert.Equal(t, "dave", members[3].UserID)

	for _, m := range members {
		require.NotNil(t, m.User, "member %s should carry identity fields", m.UserID)
	}
}

func TestListMembersRequiresMembership(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "mallory")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup})

	_, err := f.svc.ListMembers(context.Background(), managerCtx("mallory"), channel.ID)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestArchiveTransitions(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup})

	_, err := f.svc.Archive(context.Background(), managerCtx("alice"), channel.ID, types.ArchiveActionUnarchive)
	assert.ErrorIs(t, err, ErrNotArchived)

	archived, err := f.svc.Archive(context.Background(), managerCtx("alice"), channel.ID, types.ArchiveActionArchive)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	_, err = f.svc.Archive(context.Background(), managerCtx("alice"), channel.ID, types.ArchiveActionArchive)
	assert.ErrorIs(t, err, ErrAlreadyArchived)

	restored, err := f.svc.Archive(context.Background(), managerCtx("alice"), channel.ID, types.ArchiveActionUnarchive)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)
}

func TestArchiveRequiresAuthority(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "bob")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup, MemberIDs: []string{"bob"}})

	_, err := f.svc.Archive(context.Background(), managerCtx("bob"), channel.ID, types.ArchiveActionArchive)
	assert.ErrorIs(t, err, ErrForbidden)

	// A super-admin does not even need to be a member
	super := &AuthContext{UserID: "root", RoleName: types.SystemRoleSuperAdmin}
	_, err = f.svc.Archive(context.Background(), super, channel.ID, types.ArchiveActionArchive)
	assert.NoError(t, err)
}

func TestRemoveMemberNotifies(t *testing.T) {
	f := newChannelFixture(t, testUsers("alice", "bob")...)
	channel := mustCreateChannel(t, f, "alice", &CreateChannelInput{Name: "ops", Type: types.ChannelGroup, MemberIDs: []string{"bob"}})

	require.NoError(t, f.svc.RemoveMember(context.Background(), managerCtx("alice"), channel.ID, "bob"))
	assert.Equal(t, 1, f.notifier.count("MemberRemoved"))
}
