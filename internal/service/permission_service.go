package service

import (
	"context"
	"fmt"

	"github.com/opsuite/opsuite-backend/internal/repository"
	"github.com/opsuite/opsuite-backend/internal/types"
)

// ============================================
// Authorization Context
// ============================================

// AuthContext is the per-request authorization state built by the auth
// middleware. Permissions holds the permission set cached at login; nil means
// no cached set was available and the evaluator falls back to a role lookup.
type AuthContext struct {
	UserID      string
	RoleID      string
	RoleName    string
	Permissions []*repository.PermissionGrant
}

// PermissionService resolves resource/action access for a caller.
//
// A nil error means allow. ErrInsufficientPermission (and anything wrapping
// it) is a policy denial; any other error is an evaluation fault and aborts
// the request.
type PermissionService interface {
	Authorize(ctx context.Context, ac *AuthContext, resource, action string, fallbackRoles []string) error
}

type permissionService struct {
	roleRepo repository.RoleRepository
}

// NewPermissionService creates a new permission service
func NewPermissionService(roleRepo repository.RoleRepository) PermissionService {
	return &permissionService{roleRepo: roleRepo}
}

// Authorize walks the policy layers in order:
//  1. super-admin bypass
//  2. cached permission set from the auth context
//  3. persistent role permission lookup (cache miss only)
//  4. fallback role-name allow-list supplied by the caller
//  5. deny
//
// Condition predicates attached to a grant are not evaluated here; the
// mutation that consumes the grant applies them against its own data.
func (s *permissionService) Authorize(ctx context.Context, ac *AuthContext, resource, action string, fallbackRoles []string) error {
	if ac == nil {
		return ErrUnauthorized
	}

	if ac.RoleName == types.SystemRoleSuperAdmin {
		return nil
	}

	if ac.Permissions != nil {
		if grantsMatch(ac.Permissions, resource, action) {
			return nil
		}
	} else if ac.RoleID != "" {
		grants, err := s.roleRepo.GetPermissions(ctx, ac.RoleID)
		if err != nil {
			return fmt.Errorf("permission lookup failed: %w", err)
		}
		if grantsMatch(grants, resource, action) {
			return nil
		}
	}

	for _, name := range fallbackRoles {
		if ac.RoleName == name {
			return nil
		}
	}

	return ErrInsufficientPermission
}

func grantsMatch(grants []*repository.PermissionGrant, resource, action string) bool {
	for _, g := range grants {
		if g.Resource != resource {
			continue
		}
		for _, a := range g.Actions {
			if a == action {
				return true
			}
		}
	}
	return false
}
