package service

import (
	"context"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsuite/opsuite-backend/internal/config"
	"github.com/opsuite/opsuite-backend/internal/db"
	"github.com/opsuite/opsuite-backend/internal/repository"
)

// ============================================
// Auth Service
// ============================================

type RegisterInput struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token string           `json:"token"`
	User  *repository.User `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, input *RegisterInput) (*repository.User, error)
	Login(ctx context.Context, input *LoginInput) (*LoginResult, error)
	Me(ctx context.Context, userID string) (*repository.User, error)
}

type authService struct {
	config   *config.Config
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
	redis    *db.RedisDB
}

// NewAuthService creates a new auth service. redis may be nil; the
// permission snapshot cache is then skipped and the evaluator falls back to
// persistent lookups.
func NewAuthService(cfg *config.Config, userRepo repository.UserRepository, roleRepo repository.RoleRepository, redis *db.RedisDB) AuthService {
	return &authService{
		config:   cfg,
		userRepo: userRepo,
		roleRepo: roleRepo,
		redis:    redis,
	}
}

func (s *authService) Register(ctx context.Context, input *RegisterInput) (*repository.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &repository.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Status:       "active",
	}

	// New accounts get the default staff role when it exists
	if role, err := s.roleRepo.FindByName(ctx, "staff"); err == nil && role != nil {
		user.RoleID = &role.ID
		user.RoleName = role.Name
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("[Auth] ✅ User registered: %s", user.Email)
	return user, nil
}

func (s *authService) Login(ctx context.Context, input *LoginInput) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	s.cachePermissions(ctx, user)

	log.Printf("[Auth] ✅ User logged in: %s", user.Email)
	return &LoginResult{Token: token, User: user}, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*repository.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *authService) issueToken(user *repository.User) (string, error) {
	roleID := ""
	if user.RoleID != nil {
		roleID = *user.RoleID
	}

	claims := jwt.MapClaims{
		"sub":       user.ID,
		"email":     user.Email,
		"role_id":   roleID,
		"role_name": user.RoleName,
		"exp":       time.Now().Add(time.Duration(s.config.JWTExpiry) * time.Hour).Unix(),
		"iat":       time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// cachePermissions snapshots the caller's resolved permission set for the
// evaluator's fast path. Failures are logged and ignored: login must not
// depend on the cache being reachable.
func (s *authService) cachePermissions(ctx context.Context, user *repository.User) {
	if s.redis == nil || user.RoleID == nil {
		return
	}

	grants, err := s.roleRepo.GetPermissions(ctx, *user.RoleID)
	if err != nil {
		log.Printf("[Auth] ⚠️ Could not resolve permissions for %s: %v", user.ID, err)
		return
	}

	ttl := time.Duration(s.config.PermCacheTTL) * time.Hour
	if err := s.redis.SetPermissions(ctx, user.ID, grants, ttl); err != nil {
		log.Printf("[Auth] ⚠️ Could not cache permissions for %s: %v", user.ID, err)
	}
}

// ParseToken validates a bearer token and returns its claims. Used by the
// auth middleware and the websocket handshake.
func ParseToken(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if exp, ok := claims["exp"].(float64); ok {
		if time.Now().Unix() > int64(exp) {
			return nil, ErrInvalidToken
		}
	}

	return claims, nil
}
