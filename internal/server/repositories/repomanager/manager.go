package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound either to the pool or to an
// open transaction, and owns the schema.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
