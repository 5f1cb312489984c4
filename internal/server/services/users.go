// Package services contains the backend business logic: accounts, the sync
// endpoint, the form and site catalog, and submission exports.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/cryptox"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
	"github.com/dmitrijs2005/inspectsync/internal/server/config"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

const minPasswordLen = 8

type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Register validates req and creates the account. Role defaults to inspector.
func (s *UserService) Register(ctx context.Context, req wire.RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	if len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLen)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	role := req.Role
	if role == "" {
		role = models.RoleInspector
	}
	if role != models.RoleInspector && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}

	salt := cryptox.NewSalt()
	user := &models.User{
		Email:        email,
		Name:         name,
		Role:         role,
		Salt:         salt,
		PasswordHash: cryptox.HashPassword([]byte(req.Password), salt),
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login checks the password and returns a signed access token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// burn the same hashing time as a real check
			cryptox.VerifyPassword([]byte(password), s.getRandomSalt(), nil)
			return "", nil, common.ErrInvalidCredentials
		}
		return "", nil, common.ErrInternal
	}

	if !cryptox.VerifyPassword([]byte(password), user.Salt, user.PasswordHash) {
		return "", nil, common.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Role, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", nil, common.ErrInternal
	}
	return token, user, nil
}

// ParseToken validates a bearer token issued by Login.
func (s *UserService) ParseToken(token string) (*auth.Claims, error) {
	return auth.ParseToken(token, s.jwtSecret)
}

func (s *UserService) getRandomSalt() []byte {
	return cryptox.NewSalt()
}
