package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/server/config"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (*UserService, *fakeRepoManager) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour}
	return NewUserService(db, rm, cfg), rm
}

func TestRegister_DefaultsAndHashes(t *testing.T) {
	s, rm := newUserService(t)

	u, err := s.Register(context.Background(), wire.RegisterRequest{
		Email: " Alice@Example.com ", Password: "correct horse", Name: "Alice",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, models.RoleInspector, u.Role)
	require.Len(t, u.Salt, 16)
	require.NotEmpty(t, u.PasswordHash)
	require.Contains(t, rm.users.byEmail, "alice@example.com")
}

func TestRegister_Validation(t *testing.T) {
	s, _ := newUserService(t)

	cases := []wire.RegisterRequest{
		{Email: "not-an-email", Password: "longenough", Name: "A"},
		{Email: "a@b.c", Password: "short", Name: "A"},
		{Email: "a@b.c", Password: "longenough", Name: "  "},
		{Email: "a@b.c", Password: "longenough", Name: "A", Role: "root"},
	}
	for _, c := range cases {
		_, err := s.Register(context.Background(), c)
		require.ErrorIs(t, err, common.ErrValidation, "%+v", c)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	s, _ := newUserService(t)
	req := wire.RegisterRequest{Email: "a@b.c", Password: "longenough", Name: "A"}

	_, err := s.Register(context.Background(), req)
	require.NoError(t, err)
	_, err = s.Register(context.Background(), req)
	require.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestLogin_Flows(t *testing.T) {
	s, rm := newUserService(t)
	_, err := s.Register(context.Background(), wire.RegisterRequest{
		Email: "a@b.c", Password: "longenough", Name: "A", Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	token, u, err := s.Login(context.Background(), "A@B.C", "longenough")
	require.NoError(t, err)
	require.Equal(t, "a@b.c", u.Email)

	claims, err := s.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UserID)
	require.Equal(t, models.RoleAdmin, claims.Role)

	_, _, err = s.Login(context.Background(), "a@b.c", "wrong-password")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, _, err = s.Login(context.Background(), "ghost@b.c", "longenough")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	rm.users.getErr = errBoom{}
	_, _, err = s.Login(context.Background(), "a@b.c", "longenough")
	require.True(t, errors.Is(err, common.ErrInternal))
}

func TestParseToken_Garbage(t *testing.T) {
	s, _ := newUserService(t)
	_, err := s.ParseToken("not.a.token")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}
