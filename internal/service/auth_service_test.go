package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsuite/opsuite-backend/internal/config"
)

func newAuthFixture() (AuthService, *fakeUserRepo, *fakeRoleRepo) {
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: 1, PermCacheTTL: 1}
	userRepo := newFakeUserRepo()
	roleRepo := newFakeRoleRepo()
	return NewAuthService(cfg, userRepo, roleRepo, nil), userRepo, roleRepo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newAuthFixture()

	user, err := svc.Register(context.Background(), &RegisterInput{
		Name: "Ana Petrov", Email: "ana@opsuite.dev", Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	_, err = svc.Register(context.Background(), &RegisterInput{
		Name: "Ana Again", Email: "ana@opsuite.dev", Password: "whatever",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	result, err := svc.Login(context.Background(), &LoginInput{Email: "ana@opsuite.dev", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = svc.Login(context.Background(), &LoginInput{Email: "ana@opsuite.dev", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenCarriesIdentityClaims(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), &RegisterInput{
		Name: "Ana", Email: "ana@opsuite.dev", Password: "correct horse",
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), &LoginInput{Email: "ana@opsuite.dev", Password: "correct horse"})
	require.NoError(t, err)

	claims, err := ParseToken(result.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims["sub"])
	assert.Equal(t, "ana@opsuite.dev", claims["email"])

	_, err = ParseToken(result.Token, "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
