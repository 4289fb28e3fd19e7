// Package imagesets provides the PostgreSQL-backed repository for image sets.
package imagesets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/beepdata/internal/common"
	"github.com/dmitrijs2005/beepdata/internal/dbx"
	"github.com/dmitrijs2005/beepdata/internal/server/models"
)

// PostgresRepository implements image set storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, set *models.ImageSet) (*models.ImageSet, error) {
	query := `
		INSERT INTO image_sets (user_id, title, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, set.UserID, set.Title, set.Description).
		Scan(&set.ID, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return set, nil
}

// ListByOwner returns userID's sets in creation order, without images.
func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]*models.ImageSet, error) {
	query := `
		SELECT s.id, s.user_id, u.username, s.title, s.description, s.created_at, s.updated_at
		FROM image_sets s
		JOIN users u ON u.id = s.user_id
		WHERE s.user_id = $1
		ORDER BY s.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select image sets: %w", err)
	}
	defer rows.Close()

	var result []*models.ImageSet
	for rows.Next() {
		var item models.ImageSet
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.UserName, &item.Title, &item.Description,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetOwned(ctx context.Context, id int64, userID string) (*models.ImageSet, error) {
	query := `
		SELECT s.id, s.user_id, u.username, s.title, s.description, s.created_at, s.updated_at
		FROM image_sets s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.user_id = $2
	`
	item := &models.ImageSet{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&item.ID, &item.UserID, &item.UserName, &item.Title, &item.Description,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) GetOwnedForUpdate(ctx context.Context, id int64, userID string) (*models.ImageSet, error) {
	query := `
		SELECT id, user_id, title, description, created_at, updated_at
		FROM image_sets
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`
	item := &models.ImageSet{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&item.ID, &item.UserID, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

// Update never touches user_id; the owner of a set is fixed at creation.
func (r *PostgresRepository) Update(ctx context.Context, id int64, userID string, title, description *string) (*models.ImageSet, error) {
	query := `
		UPDATE image_sets
		SET title = COALESCE($3, title),
			description = COALESCE($4, description),
			updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, description, created_at, updated_at
	`
	item := &models.ImageSet{}
	err := r.db.QueryRowContext(ctx, query, id, userID, title, description).Scan(
		&item.ID, &item.UserID, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

// Delete removes the set; its images go with it through ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id int64, userID string) error {
	query := `DELETE FROM image_sets WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) CountByOwner(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM image_sets WHERE user_id = $1`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
