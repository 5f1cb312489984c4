package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
)

func (a *App) Login(ctx context.Context, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		email, err = GetSimpleText(a.reader, "Enter email", a.out)
		if err != nil {
			return err
		}
	}

	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.authService.Login(ctx, email, string(password))
	if err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			return fmt.Errorf("server unavailable, login needs a connection: %w", err)
		}
		return err
	}
	a.user = u
	a.log.Info(ctx, "logged in", "user", u.ID)
	printlnFn("Logged in as", u.Email)

	// Forms are needed offline, so fetch them right away when possible.
	res, err := a.syncer.SyncCatalog(ctx)
	if err != nil {
		printlnFn("Catalog sync failed:", err)
		return nil
	}
	printCatalog(res)
	return nil
}

func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.user = nil
	printlnFn("Logged out")
	return nil
}

func (a *App) Whoami(ctx context.Context, _ []string) error {
	u, err := a.authService.CurrentUser(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%s <%s> role=%s id=%s", u.Name, u.Email, u.Role, u.ID))
	return nil
}
