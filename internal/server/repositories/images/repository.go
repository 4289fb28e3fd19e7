package images

import (
	"context"

	"github.com/dmitrijs2005/beepdata/internal/server/models"
)

// Repository stores image metadata. The image bytes live in object storage
// under Image.StorageKey.
type Repository interface {
	// Create inserts img. A second image of the same type in one set yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, img *models.Image) (*models.Image, error)
	ListBySet(ctx context.Context, setID int64) ([]*models.Image, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.Image, error)
	ExistsType(ctx context.Context, setID int64, imageType models.ImageType) (bool, error)
	// GetOwned returns the image only if its set belongs to userID.
	GetOwned(ctx context.Context, id int64, userID string) (*models.Image, error)
	Delete(ctx context.Context, id int64) error
}
