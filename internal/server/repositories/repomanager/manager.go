package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/beepdata/internal/dbx"
	"github.com/dmitrijs2005/beepdata/internal/server/repositories/images"
	"github.com/dmitrijs2005/beepdata/internal/server/repositories/imagesets"
	"github.com/dmitrijs2005/beepdata/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/beepdata/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/beepdata/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against *sql.DB or inside a dbx.WithTx transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	ImageSets(db dbx.DBTX) imagesets.Repository
	Images(db dbx.DBTX) images.Repository
}
