// Package services contains the client's use cases. Each service validates
// input, talks to the local repositories and, where needed, to the backend,
// and wraps lower level errors with what the caller was trying to do.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/users"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

// AuthClient is the slice of the gateway the auth service needs.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (*wire.LoginResponse, error)
	SetAccessToken(token string)
}

// AuthService defines authentication operations for the CLI.
//
//   - Login authenticates against the server and caches the user and token.
//   - RestoreSession re-arms the gateway with a cached token after restart.
//   - CurrentUser works offline.
//   - Logout forgets the token but keeps the cached user profile.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	RestoreSession(ctx context.Context) (*models.User, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
}

type authService struct {
	client AuthClient
	prober api.Prober
	db     *sql.DB
}

// NewAuthService constructs an AuthService. prober may be nil.
func NewAuthService(client AuthClient, prober api.Prober, db *sql.DB) AuthService {
	return &authService{client: client, prober: prober, db: db}
}

func (a *authService) Login(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	resp, err := a.client.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	u, err := api.UserFromWire(resp.User)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := users.NewSQLiteRepository(tx).Save(ctx, &u); err != nil {
			return err
		}
		metaRepo := metadata.NewSQLiteRepository(tx)
		if err := metaRepo.SetString(ctx, metadata.KeyCurrentUserID, u.ID); err != nil {
			return err
		}
		return metaRepo.SetString(ctx, metadata.KeyAuthToken, resp.AccessToken)
	})
	if err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}

	a.client.SetAccessToken(resp.AccessToken)
	return &u, nil
}

func (a *authService) RestoreSession(ctx context.Context) (*models.User, error) {
	token, err := metadata.NewSQLiteRepository(a.db).GetString(ctx, metadata.KeyAuthToken)
	if errors.Is(err, common.ErrNotFound) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	u, err := currentUser(ctx, a.db)
	if err != nil {
		return nil, err
	}
	a.client.SetAccessToken(token)
	return u, nil
}

func (a *authService) CurrentUser(ctx context.Context) (*models.User, error) {
	return currentUser(ctx, a.db)
}

func (a *authService) Logout(ctx context.Context) error {
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		metaRepo := metadata.NewSQLiteRepository(tx)
		if err := metaRepo.Delete(ctx, metadata.KeyAuthToken); err != nil {
			return err
		}
		return metaRepo.Delete(ctx, metadata.KeyCurrentUserID)
	})
	if err != nil {
		return fmt.Errorf("logout error: %w", err)
	}
	a.client.SetAccessToken("")
	return nil
}

// Ping reports whether the backend answers its health check.
func (a *authService) Ping(ctx context.Context) error {
	if a.prober == nil {
		return nil
	}
	return a.prober.Ping(ctx)
}
