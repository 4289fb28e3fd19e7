package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/beepdata/internal/server/models"
	"github.com/dmitrijs2005/beepdata/internal/server/services"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// imageSetRequest is used for create and for partial updates.
type imageSetRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type authResponse struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type webResponse struct {
	Success    bool   `json:"success"`
	Redirect   string `json:"redirect,omitempty"`
	Message    string `json:"message,omitempty"`
	ImageSetID int64  `json:"image_set_id,omitempty"`
}

type imageResponse struct {
	ID         int64     `json:"id"`
	ImageType  string    `json:"image_type"`
	ImageFile  string    `json:"image_file"`
	ImageURL   string    `json:"image_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type imageSetResponse struct {
	ID          int64            `json:"id"`
	User        string           `json:"user"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Images      []*imageResponse `json:"images"`
	IsComplete  bool             `json:"is_complete"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func toUserResponse(u *models.User) *userResponse {
	return &userResponse{ID: u.ID, Username: u.UserName, Email: u.Email}
}

func toAuthResponse(u *models.User, pair *services.TokenPair) *authResponse {
	resp := &authResponse{Token: pair.AccessToken, RefreshToken: pair.RefreshToken}
	if u != nil {
		resp.User = toUserResponse(u)
	}
	return resp
}

func (s *HTTPServer) toImageResponse(ctx context.Context, img *models.Image) (*imageResponse, error) {
	url, err := s.imageSets.ImageURL(ctx, img)
	if err != nil {
		return nil, err
	}
	return &imageResponse{
		ID:         img.ID,
		ImageType:  string(img.Type),
		ImageFile:  img.StorageKey,
		ImageURL:   url,
		UploadedAt: img.UploadedAt,
	}, nil
}

func (s *HTTPServer) toImageSetResponse(ctx context.Context, set *models.ImageSet) (*imageSetResponse, error) {
	resp := &imageSetResponse{
		ID:          set.ID,
		User:        set.UserName,
		Title:       set.Title,
		Description: set.Description,
		Images:      make([]*imageResponse, 0, len(set.Images)),
		IsComplete:  services.IsComplete(set),
		CreatedAt:   set.CreatedAt,
		UpdatedAt:   set.UpdatedAt,
	}
	for _, img := range set.Images {
		ir, err := s.toImageResponse(ctx, img)
		if err != nil {
			return nil, err
		}
		resp.Images = append(resp.Images, ir)
	}
	return resp, nil
}

func (s *HTTPServer) toImageSetList(ctx context.Context, sets []*models.ImageSet) ([]*imageSetResponse, error) {
	out := make([]*imageSetResponse, 0, len(sets))
	for _, set := range sets {
		r, err := s.toImageSetResponse(ctx, set)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
