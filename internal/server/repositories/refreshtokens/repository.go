// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/beepdata/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID with an expiry of now+validity
	// and returns the stored row including its id.
	Create(ctx context.Context, userID string, token string, validity time.Duration) (*models.RefreshToken, error)

	// Find looks up a refresh token by its opaque token string.
	// Returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// FindByID looks up the row backing an access token's jti.
	FindByID(ctx context.Context, id string) (*models.RefreshToken, error)

	// Delete removes a refresh token by its token string. Deleting a non-existent
	// token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteByID revokes the pair backed by id. Returns common.ErrorNotFound
	// when no row was removed.
	DeleteByID(ctx context.Context, id string) error
}
