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
// User Model (identity store)
// ============================================

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar"`
	RoleID       *string   `json:"roleId,omitempty"`
	RoleName     string    `json:"roleName,omitempty"`
	DepartmentID *string   `json:"departmentId,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ============================================
// User Repository Interface
// ============================================

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByIDs resolves a set of identities in a single round trip.
	FindByIDs(ctx context.Context, ids []string) (map[string]*User, error)
}

// ============================================
// PostgreSQL Implementation
// ============================================

type pgUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepository{pool: pool}
}

const userColumns = `u.id, u.email, u.name, u.password_hash, u.avatar, u.role_id,
	COALESCE(r.name, ''), u.department_id, u.status, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Avatar, &u.RoleID,
		&u.RoleName, &u.DepartmentID, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	if user.Status == "" {
		user.Status = "offline"
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, avatar, role_id, department_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, user.ID, user.Email, user.Name, user.PasswordHash, user.Avatar, user.RoleID, user.DepartmentID,
		user.Status, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.email = $1
	`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// FindByIDs batches profile resolution for member listings and identity
// snapshots so callers never issue per-user lookups.
func (r *pgUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*User, error) {
	users := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}
