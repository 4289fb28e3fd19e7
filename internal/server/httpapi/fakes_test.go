package httpapi

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/beepdata/internal/common"
	"github.com/dmitrijs2005/beepdata/internal/logging"
	"github.com/dmitrijs2005/beepdata/internal/server/models"
	"github.com/dmitrijs2005/beepdata/internal/server/services"
)

// fakeUsers knows a fixed set of accounts, access tokens and sessions.
type fakeUsers struct {
	mu        sync.Mutex
	passwords map[string]string // username -> password
	ids       map[string]string // username -> id
	tokens    map[string]*services.Identity
	sessions  map[string]string // session id -> user id
	next      int

	panicOnProfile bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		passwords: map[string]string{},
		ids:       map[string]string{},
		tokens:    map[string]*services.Identity{},
		sessions:  map[string]string{},
	}
}

func (f *fakeUsers) user(name string) *models.User {
	return &models.User{ID: f.ids[name], UserName: name}
}

func (f *fakeUsers) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[username]; ok {
		return nil, common.ErrDuplicateUsername
	}
	f.next++
	f.ids[username] = "u" + strconv.Itoa(f.next)
	f.passwords[username] = password
	u := f.user(username)
	u.Email = email
	return u, nil
}

func (f *fakeUsers) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.passwords[username]; !ok || p != password {
		return nil, common.ErrInvalidCredentials
	}
	return f.user(username), nil
}

func (f *fakeUsers) Login(ctx context.Context, username, password string) (*models.User, *services.TokenPair, error) {
	u, err := f.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	pair, err := f.IssueTokens(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

func (f *fakeUsers) IssueTokens(ctx context.Context, userID string) (*services.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	tokenID := "t" + strconv.Itoa(f.next)
	access := "access-" + tokenID
	f.tokens[access] = &services.Identity{UserID: userID, TokenID: tokenID}
	return &services.TokenPair{AccessToken: access, RefreshToken: "refresh-" + tokenID}, nil
}

func (f *fakeUsers) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if refreshToken == "expired" {
		return nil, common.ErrRefreshTokenExpired
	}
	return nil, common.ErrorUnauthorized
}

func (f *fakeUsers) ResolveAccessToken(ctx context.Context, token string) (*services.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return id, nil
}

func (f *fakeUsers) Logout(ctx context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, id := range f.tokens {
		if id.TokenID == tokenID {
			delete(f.tokens, k)
			return nil
		}
	}
	return common.ErrTokenNotFound
}

func (f *fakeUsers) Profile(ctx context.Context, userID string) (*models.User, error) {
	if f.panicOnProfile {
		panic("profile exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, id := range f.ids {
		if id == userID {
			return f.user(name), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) CreateSession(ctx context.Context, userID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := "sess" + strconv.Itoa(f.next)
	f.sessions[id] = userID
	return &models.Session{ID: id, UserID: userID, Expires: time.Now().Add(time.Hour)}, nil
}

func (f *fakeUsers) ResolveSession(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, ok := f.sessions[id]
	if !ok {
		return "", common.ErrorUnauthorized
	}
	return uid, nil
}

func (f *fakeUsers) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

// fakeImageSets keeps sets in memory with owner scoping and the one image
// per type rule.
type fakeImageSets struct {
	mu      sync.Mutex
	sets    map[int64]*models.ImageSet
	nextSet int64
	nextImg int64
	bodies  map[int64][]byte
}

func newFakeImageSets() *fakeImageSets {
	return &fakeImageSets{sets: map[int64]*models.ImageSet{}, bodies: map[int64][]byte{}}
}

func (f *fakeImageSets) owned(owner string, id int64) (*models.ImageSet, error) {
	set, ok := f.sets[id]
	if !ok || set.UserID != owner {
		return nil, common.ErrorNotFound
	}
	return set, nil
}

func (f *fakeImageSets) ListImageSets(ctx context.Context, owner string) ([]*models.ImageSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.ImageSet{}
	for i := int64(1); i <= f.nextSet; i++ {
		if set, ok := f.sets[i]; ok && set.UserID == owner {
			out = append(out, set)
		}
	}
	return out, nil
}

func (f *fakeImageSets) CreateImageSet(ctx context.Context, owner, title, description string) (*models.ImageSet, error) {
	if len(title) > models.MaxTitleLength {
		return nil, validationError("title too long")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSet++
	set := &models.ImageSet{ID: f.nextSet, UserID: owner, UserName: owner, Title: title, Description: description, Images: []*models.Image{}}
	f.sets[set.ID] = set
	return set, nil
}

func (f *fakeImageSets) GetImageSet(ctx context.Context, owner string, id int64) (*models.ImageSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owned(owner, id)
}

func (f *fakeImageSets) UpdateImageSet(ctx context.Context, owner string, id int64, patch services.ImageSetPatch) (*models.ImageSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, err := f.owned(owner, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		set.Title = *patch.Title
	}
	if patch.Description != nil {
		set.Description = *patch.Description
	}
	return set, nil
}

func (f *fakeImageSets) DeleteImageSet(ctx context.Context, owner string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.owned(owner, id); err != nil {
		return err
	}
	delete(f.sets, id)
	return nil
}

func (f *fakeImageSets) AddImage(ctx context.Context, owner string, setID int64, upload services.ImageUpload) (*models.Image, error) {
	t, err := models.ParseImageType(upload.Type)
	if err != nil {
		return nil, validationError(err.Error())
	}
	body, err := io.ReadAll(upload.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	set, err := f.owned(owner, setID)
	if err != nil {
		return nil, err
	}
	for _, img := range set.Images {
		if img.Type == t {
			return nil, common.ErrDuplicateType
		}
	}
	f.nextImg++
	img := &models.Image{ID: f.nextImg, ImageSetID: setID, Type: t, StorageKey: "images/k/" + upload.FileName}
	set.Images = append(set.Images, img)
	f.bodies[img.ID] = body
	return img, nil
}

func (f *fakeImageSets) DeleteImage(ctx context.Context, owner string, imageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, set := range f.sets {
		if set.UserID != owner {
			continue
		}
		for i, img := range set.Images {
			if img.ID == imageID {
				set.Images = append(set.Images[:i], set.Images[i+1:]...)
				return nil
			}
		}
	}
	return common.ErrorNotFound
}

func (f *fakeImageSets) ImageURL(ctx context.Context, img *models.Image) (string, error) {
	return "https://cdn.example/" + img.StorageKey, nil
}

func (f *fakeImageSets) CreateImageSetWithImages(ctx context.Context, owner string, uploads []services.ImageUpload) (*models.ImageSet, error) {
	sets, _ := f.ListImageSets(ctx, owner)
	set, err := f.CreateImageSet(ctx, owner, "Image Set "+strconv.Itoa(len(sets)+1), "")
	if err != nil {
		return nil, err
	}
	for _, u := range uploads {
		if _, err := f.AddImage(ctx, owner, set.ID, u); err != nil {
			_ = f.DeleteImageSet(ctx, owner, set.ID)
			return nil, err
		}
	}
	return set, nil
}

func newTestServer(opts Options) (*HTTPServer, *fakeUsers, *fakeImageSets) {
	if opts.MaxUploadSize == 0 {
		opts.MaxUploadSize = 1 << 20
	}
	if opts.RateLimitRPS == 0 {
		opts.RateLimitRPS = 1000
		opts.RateLimitBurst = 1000
	}
	us := newFakeUsers()
	is := newFakeImageSets()
	return NewHTTPServer(opts, logging.Nop(), us, is), us, is
}
