package models

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ImageType is the role an image plays inside its set.
type ImageType string

const (
	ImageTypeInput ImageType = "input"
	ImageTypeDress ImageType = "dress"
	ImageTypeFinal ImageType = "final"
)

// ImageTypes lists every type in display order.
var ImageTypes = []ImageType{ImageTypeInput, ImageTypeDress, ImageTypeFinal}

// MaxTitleLength bounds ImageSet.Title, in characters.
const MaxTitleLength = 200

// AllowedExtensions are the accepted upload file extensions (lower case, with dot).
var AllowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// ParseImageType validates s against the known image types.
func ParseImageType(s string) (ImageType, error) {
	t := ImageType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ImageTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown image type %q", s)
}

// Rank orders types input < dress < final.
func (t ImageType) Rank() int {
	for i, known := range ImageTypes {
		if t == known {
			return i
		}
	}
	return len(ImageTypes)
}

// FileExtension returns the lower-cased extension of name if it is allowed.
func FileExtension(name string) (string, error) {
	ext := strings.ToLower(path.Ext(name))
	if _, ok := AllowedExtensions[ext]; !ok {
		return "", fmt.Errorf("file extension %q is not allowed", ext)
	}
	return ext, nil
}

// ImageSet groups up to one image of each type under a single owner.
type ImageSet struct {
	ID          int64
	UserID      string
	UserName    string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Images      []*Image
}

// IsComplete reports whether the set holds an image of every type.
func (s *ImageSet) IsComplete() bool {
	return len(s.Images) == len(ImageTypes)
}

// Image is a single uploaded file; the bytes live in object storage under StorageKey.
type Image struct {
	ID         int64
	ImageSetID int64
	Type       ImageType
	StorageKey string
	UploadedAt time.Time
}
