package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/files"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/forms"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/sites"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/submissions"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Forms(db dbx.DBTX) forms.Repository
	Submissions(db dbx.DBTX) submissions.Repository
	Files(db dbx.DBTX) files.Repository
	Sites(db dbx.DBTX) sites.Repository
}
