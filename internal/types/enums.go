package types

// Channel Type values
const (
	ChannelDirect        = "direct"
	ChannelProject       = "project"
	ChannelClientSupport = "client_support"
	ChannelGroup         = "group"
	ChannelDepartment    = "department"
	ChannelGeneral       = "general"
)

// Channel Member Roles
const (
	MemberRoleOwner  = "owner"
	MemberRoleAdmin  = "admin"
	MemberRoleMember = "member"
)

// Membership origin
const (
	AddedViaManual = "manual"
	AddedViaAuto   = "auto"
)

// Message content types
const (
	ContentText   = "text"
	ContentFile   = "file"
	ContentSystem = "system"
)

// Archive actions
const (
	ArchiveActionArchive   = "archive"
	ArchiveActionUnarchive = "unarchive"
)

// System-wide role names
const (
	SystemRoleSuperAdmin = "super_admin"
)

// Permission resources guarding the messaging surface
const (
	ResourceChannels = "channels"
	ResourceMessages = "messages"
)

// Permission actions
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionManage = "manage"
)

// Valid values for request validation
var ValidChannelTypes = []string{
	ChannelDirect, ChannelProject, ChannelClientSupport,
	ChannelGroup, ChannelDepartment, ChannelGeneral,
}

var ValidMemberRoles = []string{
	MemberRoleOwner, MemberRoleAdmin, MemberRoleMember,
}

// MemberRoleRank returns the ordering rank for a channel role
// (owner sorts first, then admins, then members).
func MemberRoleRank(role string) int {
	switch role {
	case MemberRoleOwner:
		return 0
	case MemberRoleAdmin:
		return 1
	case MemberRoleMember:
		return 2
	default:
		return 3
	}
}

// IsChannelAdmin reports whether a channel role carries admin authority.
func IsChannelAdmin(role string) bool {
	return role == MemberRoleOwner || role == MemberRoleAdmin
}

func IsValidChannelType(t string) bool {
	for _, v := range ValidChannelTypes {
		if v == t {
			return true
		}
	}
	return false
}

func IsValidMemberRole(r string) bool {
	for _, v := range ValidMemberRoles {
		if v == r {
			return true
		}
	}
	return false
}
