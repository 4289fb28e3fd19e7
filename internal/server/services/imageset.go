package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/beepdata/internal/common"
	"github.com/dmitrijs2005/beepdata/internal/dbx"
	"github.com/dmitrijs2005/beepdata/internal/logging"
	"github.com/dmitrijs2005/beepdata/internal/server/models"
	"github.com/dmitrijs2005/beepdata/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/beepdata/internal/server/storage"
)

// ImageSetPatch carries a partial update; nil fields are left unchanged.
type ImageSetPatch struct {
	Title       *string
	Description *string
}

// ImageUpload is one file to attach to a set.
type ImageUpload struct {
	Type        string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageSetService owns image sets and their images. Every operation is
// scoped to the calling owner; sets of other users behave as absent.
type ImageSetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.ObjectStore
	log         logging.Logger
	now         func() time.Time
}

func NewImageSetService(db *sql.DB, m repomanager.RepositoryManager, store storage.ObjectStore, log logging.Logger) *ImageSetService {
	return &ImageSetService{
		db:          db,
		repomanager: m,
		store:       store,
		log:         log.With("module", "imagesets"),
		now:         time.Now,
	}
}

// IsComplete reports whether set has one image of every type.
func IsComplete(set *models.ImageSet) bool {
	return set.IsComplete()
}

func (s *ImageSetService) CreateImageSet(ctx context.Context, owner, title, description string) (*models.ImageSet, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	set, err := s.repomanager.ImageSets(s.db).Create(ctx, &models.ImageSet{
		UserID:      owner,
		Title:       title,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating image set: %w", err)
	}

	s.log.Info(ctx, "image set created", "image_set_id", set.ID, "user_id", owner)
	return s.GetImageSet(ctx, owner, set.ID)
}

// ListImageSets returns owner's sets in creation order with their images.
func (s *ImageSetService) ListImageSets(ctx context.Context, owner string) ([]*models.ImageSet, error) {
	sets, err := s.repomanager.ImageSets(s.db).ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return []*models.ImageSet{}, nil
	}

	imgs, err := s.repomanager.Images(s.db).ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	bySet := make(map[int64]*models.ImageSet, len(sets))
	for _, set := range sets {
		set.Images = []*models.Image{}
		bySet[set.ID] = set
	}
	for _, img := range imgs {
		if set, ok := bySet[img.ImageSetID]; ok {
			set.Images = append(set.Images, img)
		}
	}
	return sets, nil
}

func (s *ImageSetService) GetImageSet(ctx context.Context, owner string, id int64) (*models.ImageSet, error) {
	set, err := s.repomanager.ImageSets(s.db).GetOwned(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	imgs, err := s.repomanager.Images(s.db).ListBySet(ctx, id)
	if err != nil {
		return nil, err
	}
	if imgs == nil {
		imgs = []*models.Image{}
	}
	set.Images = imgs
	return set, nil
}

// UpdateImageSet changes title and/or description. The owner never changes.
func (s *ImageSetService) UpdateImageSet(ctx context.Context, owner string, id int64, patch ImageSetPatch) (*models.ImageSet, error) {
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}

	if _, err := s.repomanager.ImageSets(s.db).Update(ctx, id, owner, patch.Title, patch.Description); err != nil {
		return nil, err
	}
	return s.GetImageSet(ctx, owner, id)
}

// DeleteImageSet removes the set and its images in one transaction, then
// reclaims the stored objects. Storage failures are logged only.
func (s *ImageSetService) DeleteImageSet(ctx context.Context, owner string, id int64) error {
	var keys []string

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sets := s.repomanager.ImageSets(tx)
		if _, err := sets.GetOwnedForUpdate(ctx, id, owner); err != nil {
			return err
		}

		imgs, err := s.repomanager.Images(tx).ListBySet(ctx, id)
		if err != nil {
			return err
		}
		for _, img := range imgs {
			keys = append(keys, img.StorageKey)
		}

		return sets.Delete(ctx, id, owner)
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		s.removeObject(ctx, key)
	}
	s.log.Info(ctx, "image set deleted", "image_set_id", id, "user_id", owner, "images", len(keys))
	return nil
}

// AddImage stores the file and attaches it to the set. A set holds at most
// one image per type; the database constraint settles concurrent uploads.
func (s *ImageSetService) AddImage(ctx context.Context, owner string, setID int64, upload ImageUpload) (*models.Image, error) {
	imageType, err := models.ParseImageType(upload.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	ext, err := models.FileExtension(upload.FileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	if upload.Body == nil {
		return nil, fmt.Errorf("%w: image file is required", common.ErrorValidation)
	}

	if _, err := s.repomanager.ImageSets(s.db).GetOwned(ctx, setID, owner); err != nil {
		return nil, err
	}

	imagesRepo := s.repomanager.Images(s.db)

	exists, err := imagesRepo.ExistsType(ctx, setID, imageType)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrDuplicateType
	}

	key := storage.NewStorageKey(s.now(), ext)
	if err := s.store.Put(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
		return nil, fmt.Errorf("error storing image: %w", err)
	}

	img, err := imagesRepo.Create(ctx, &models.Image{
		ImageSetID: setID,
		Type:       imageType,
		StorageKey: key,
	})
	if err != nil {
		s.removeObject(ctx, key)
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrDuplicateType
		}
		return nil, err
	}

	s.log.Info(ctx, "image added", "image_set_id", setID, "image_id", img.ID, "type", string(imageType))
	return img, nil
}

// DeleteImage removes one image and its stored object.
func (s *ImageSetService) DeleteImage(ctx context.Context, owner string, imageID int64) error {
	imagesRepo := s.repomanager.Images(s.db)

	img, err := imagesRepo.GetOwned(ctx, imageID, owner)
	if err != nil {
		return err
	}
	if err := imagesRepo.Delete(ctx, img.ID); err != nil {
		return err
	}

	s.removeObject(ctx, img.StorageKey)
	return nil
}

// ImageURL turns the stored reference of img into a retrievable URL.
func (s *ImageSetService) ImageURL(ctx context.Context, img *models.Image) (string, error) {
	return s.store.URL(ctx, img.StorageKey)
}

// CreateImageSetWithImages creates a set titled "Image Set N", where N
// follows the owner's current set count, and attaches every upload.
// If any upload fails the new set is removed again.
func (s *ImageSetService) CreateImageSetWithImages(ctx context.Context, owner string, uploads []ImageUpload) (*models.ImageSet, error) {
	n, err := s.repomanager.ImageSets(s.db).CountByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	set, err := s.CreateImageSet(ctx, owner, fmt.Sprintf("Image Set %d", n+1), "")
	if err != nil {
		return nil, err
	}

	for _, u := range uploads {
		if _, err := s.AddImage(ctx, owner, set.ID, u); err != nil {
			if delErr := s.DeleteImageSet(ctx, owner, set.ID); delErr != nil {
				s.log.Error(ctx, "failed to roll back image set", "image_set_id", set.ID, "error", delErr)
			}
			return nil, err
		}
	}

	return s.GetImageSet(ctx, owner, set.ID)
}

func (s *ImageSetService) removeObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn(ctx, "failed to delete stored object", "key", key, "error", err)
	}
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", common.ErrorValidation, models.MaxTitleLength)
	}
	return nil
}
