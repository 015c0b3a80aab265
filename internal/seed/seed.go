// internal/seed/seed.go
package seed

import (
	"context"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/opsuite/opsuite-backend/internal/repository"
	"github.com/opsuite/opsuite-backend/internal/types"
)

// SeedData creates the system roles, their permission grants and a handful
// of demo users. Every insert is idempotent so the seed can run on each boot.
func SeedData(repos *repository.Repositories) {
	ctx := context.Background()

	log.Println("[Seed] 🌱 Creating roles and demo users...")

	// ============================================
	// SYSTEM ROLES
	// ============================================
	superAdmin, _ := ensureRole(ctx, repos, &repository.Role{Name: types.SystemRoleSuperAdmin, Level: 100, IsSystem: true})
	manager, managerCreated := ensureRole(ctx, repos, &repository.Role{Name: "manager", Level: 50, IsSystem: true})
	staff, staffCreated := ensureRole(ctx, repos, &repository.Role{Name: "staff", Level: 10, IsSystem: true})

	// Super-admin needs no grants: the evaluator bypasses it by name.
	// Grants are written only on first creation to keep the seed idempotent.
	if managerCreated {
		repos.RoleRepo.AddPermission(ctx, &repository.PermissionGrant{
			RoleID:   manager.ID,
			Resource: types.ResourceChannels,
			Actions:  []string{types.ActionView, types.ActionCreate, types.ActionEdit, types.ActionManage},
		})
		repos.RoleRepo.AddPermission(ctx, &repository.PermissionGrant{
			RoleID:   manager.ID,
			Resource: types.ResourceMessages,
			Actions:  []string{types.ActionView, types.ActionCreate, types.ActionEdit, types.ActionDelete},
		})
	}
	if staffCreated {
		repos.RoleRepo.AddPermission(ctx, &repository.PermissionGrant{
			RoleID:     staff.ID,
			Resource:   types.ResourceChannels,
			Actions:    []string{types.ActionView, types.ActionCreate},
			Conditions: []string{"department"},
		})
		repos.RoleRepo.AddPermission(ctx, &repository.PermissionGrant{
			RoleID:   staff.ID,
			Resource: types.ResourceMessages,
			Actions:  []string{types.ActionView, types.ActionCreate},
		})
	}

	// ============================================
	// DEMO USERS
	// ============================================
	password, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)

	ensureUser(ctx, repos, &repository.User{
		Email:        "ana.ops@opsuite.dev",
		Name:         "Ana Petrov",
		PasswordHash: string(password),
		Status:       "active",
	}, superAdmin)

	ensureUser(ctx, repos, &repository.User{
		Email:        "marco.sales@opsuite.dev",
		Name:         "Marco Silva",
		PasswordHash: string(password),
		Status:       "active",
	}, manager)

	ensureUser(ctx, repos, &repository.User{
		Email:        "lena.support@opsuite.dev",
		Name:         "Lena Fischer",
		PasswordHash: string(password),
		Status:       "active",
	}, staff)

	log.Println("[Seed] ✅ Seed data ready")
}

func ensureRole(ctx context.Context, repos *repository.Repositories, role *repository.Role) (*repository.Role, bool) {
	existing, err := repos.RoleRepo.FindByName(ctx, role.Name)
	if err != nil {
		log.Printf("[Seed] ❌ Role lookup failed for %s: %v", role.Name, err)
		return nil, false
	}
	if existing != nil {
		return existing, false
	}
	if err := repos.RoleRepo.Create(ctx, role); err != nil {
		log.Printf("[Seed] ❌ Could not create role %s: %v", role.Name, err)
		return nil, false
	}
	return role, true
}

func ensureUser(ctx context.Context, repos *repository.Repositories, user *repository.User, role *repository.Role) {
	existing, err := repos.UserRepo.FindByEmail(ctx, user.Email)
	if err != nil || existing != nil {
		return
	}
	if role != nil {
		user.RoleID = &role.ID
		user.RoleName = role.Name
	}
	if err := repos.UserRepo.Create(ctx, user); err != nil {
		log.Printf("[Seed] ❌ Could not create user %s: %v", user.Email, err)
	}
}
