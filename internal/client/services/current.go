package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/inspectsync/internal/client/repositories/users"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
)

// currentUser returns the user recorded at login, falling back to the
// earliest cached user.
func currentUser(ctx context.Context, db dbx.DBTX) (*models.User, error) {
	userRepo := users.NewSQLiteRepository(db)

	id, err := metadata.NewSQLiteRepository(db).GetString(ctx, metadata.KeyCurrentUserID)
	switch {
	case err == nil:
		u, err := userRepo.FindByID(ctx, id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to load current user: %w", err)
		}
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("failed to read current user id: %w", err)
	}

	u, err := userRepo.First(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cached user: %w", err)
	}
	return u, nil
}
