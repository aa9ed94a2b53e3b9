package repomanager

import (
	"context"
	"database/sql"

	"github.com/sfstore/sfs/internal/dbx"
	"github.com/sfstore/sfs/internal/server/repositories/baskets"
	"github.com/sfstore/sfs/internal/server/repositories/files"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Baskets(db dbx.DBTX) baskets.Repository
	Files(db dbx.DBTX) files.Repository
}
