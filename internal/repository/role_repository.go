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
// Role / Permission Models
// ============================================

// Role is the system-wide authorization aggregate, distinct from the
// channel-scoped member role.
type Role struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	IsSystem  bool      `json:"isSystem"`
	CreatedAt time.Time `json:"createdAt"`
}

// PermissionGrant allows a set of actions on a resource, optionally narrowed
// by condition predicates (own/department/assigned). Conditions are evaluated
// by the mutation that consumes the grant, not by the authorization gate.
type PermissionGrant struct {
	ID         string   `json:"id"`
	RoleID     string   `json:"roleId"`
	Resource   string   `json:"resource"`
	Actions    []string `json:"actions"`
	Conditions []string `json:"conditions,omitempty"`
}

// ============================================
// Role Repository Interface
// ============================================

type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	AddPermission(ctx context.Context, grant *PermissionGrant) error
	GetPermissions(ctx context.Context, roleID string) ([]*PermissionGrant, error)
}

// ============================================
// PostgreSQL Implementation
// ============================================

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) Create(ctx context.Context, role *Role) error {
	role.ID = uuid.New().String()
	role.CreatedAt = time.Now()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO roles (id, name, level, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING
	`, role.ID, role.Name, role.Level, role.IsSystem, role.CreatedAt)
	return err
}

func (r *roleRepository) FindByID(ctx context.Context, id string) (*Role, error) {
	role := &Role{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, level, is_system, created_at FROM roles WHERE id = $1
	`, id).Scan(&role.ID, &role.Name, &role.Level, &role.IsSystem, &role.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*Role, error) {
	role := &Role{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, level, is_system, created_at FROM roles WHERE name = $1
	`, name).Scan(&role.ID, &role.Name, &role.Level, &role.IsSystem, &role.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *roleRepository) AddPermission(ctx context.Context, grant *PermissionGrant) error {
	grant.ID = uuid.New().String()
	if grant.Conditions == nil {
		grant.Conditions = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (id, role_id, resource, actions, conditions)
		VALUES ($1, $2, $3, $4, $5)
	`, grant.ID, grant.RoleID, grant.Resource, grant.Actions, grant.Conditions)
	return err
}

func (r *roleRepository) GetPermissions(ctx context.Context, roleID string) ([]*PermissionGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, role_id, resource, actions, conditions
		FROM role_permissions WHERE role_id = $1
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []*PermissionGrant
	for rows.Next() {
		grant := &PermissionGrant{}
		if err := rows.Scan(&grant.ID, &grant.RoleID, &grant.Resource, &grant.Actions, &grant.Conditions); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}
