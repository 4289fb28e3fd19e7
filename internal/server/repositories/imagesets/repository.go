package imagesets

import (
	"context"

	"github.com/dmitrijs2005/beepdata/internal/server/models"
)

// Repository stores image sets. Every lookup is scoped by owner, so a set
// that exists but belongs to someone else is reported as common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, set *models.ImageSet) (*models.ImageSet, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.ImageSet, error)
	GetOwned(ctx context.Context, id int64, userID string) (*models.ImageSet, error)
	// GetOwnedForUpdate is GetOwned with a row lock; call it inside a transaction.
	GetOwnedForUpdate(ctx context.Context, id int64, userID string) (*models.ImageSet, error)
	// Update sets title and description where the arguments are non-nil.
	Update(ctx context.Context, id int64, userID string, title, description *string) (*models.ImageSet, error)
	Delete(ctx context.Context, id int64, userID string) error
	CountByOwner(ctx context.Context, userID string) (int64, error)
}
