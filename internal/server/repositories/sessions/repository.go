// Package sessions persists web login sessions referenced by the sessionid cookie.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/beepdata/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
