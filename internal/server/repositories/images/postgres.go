// Package images provides the PostgreSQL-backed repository for image metadata.
package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/beepdata/internal/common"
	"github.com/dmitrijs2005/beepdata/internal/dbx"
	"github.com/dmitrijs2005/beepdata/internal/server/models"
)

// PostgresRepository implements image storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, img *models.Image) (*models.Image, error) {
	query := `
		INSERT INTO images (image_set_id, image_type, storage_key)
		VALUES ($1, $2, $3)
		RETURNING id, uploaded_at
	`
	err := r.db.QueryRowContext(ctx, query, img.ImageSetID, string(img.Type), img.StorageKey).
		Scan(&img.ID, &img.UploadedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return img, nil
}

// ListBySet returns the images of one set ordered input, dress, final.
func (r *PostgresRepository) ListBySet(ctx context.Context, setID int64) ([]*models.Image, error) {
	query := `
		SELECT id, image_set_id, image_type, storage_key, uploaded_at
		FROM images
		WHERE image_set_id = $1
		ORDER BY CASE image_type WHEN 'input' THEN 0 WHEN 'dress' THEN 1 ELSE 2 END
	`
	return r.list(ctx, query, setID)
}

// ListByOwner returns the images of every set owned by userID, grouped by
// set and ordered by type inside each set.
func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]*models.Image, error) {
	query := `
		SELECT i.id, i.image_set_id, i.image_type, i.storage_key, i.uploaded_at
		FROM images i
		JOIN image_sets s ON s.id = i.image_set_id
		WHERE s.user_id = $1
		ORDER BY i.image_set_id, CASE i.image_type WHEN 'input' THEN 0 WHEN 'dress' THEN 1 ELSE 2 END
	`
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]*models.Image, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	defer rows.Close()

	var result []*models.Image
	for rows.Next() {
		var item models.Image
		var imageType string
		if err := rows.Scan(&item.ID, &item.ImageSetID, &imageType, &item.StorageKey, &item.UploadedAt); err != nil {
			return nil, err
		}
		item.Type = models.ImageType(imageType)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ExistsType(ctx context.Context, setID int64, imageType models.ImageType) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM images WHERE image_set_id = $1 AND image_type = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, setID, string(imageType)).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) GetOwned(ctx context.Context, id int64, userID string) (*models.Image, error) {
	query := `
		SELECT i.id, i.image_set_id, i.image_type, i.storage_key, i.uploaded_at
		FROM images i
		JOIN image_sets s ON s.id = i.image_set_id
		WHERE i.id = $1 AND s.user_id = $2
	`
	item := &models.Image{}
	var imageType string
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&item.ID, &item.ImageSetID, &imageType, &item.StorageKey, &item.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	item.Type = models.ImageType(imageType)
	return item, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM images WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
