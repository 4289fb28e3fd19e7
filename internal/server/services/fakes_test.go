package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/beepdata/internal/common"
	"github.com/dmitrijs2005/beepdata/internal/dbx"
	"github.com/dmitrijs2005/beepdata/internal/logging"
	"github.com/dmitrijs2005/beepdata/internal/server/config"
	"github.com/dmitrijs2005/beepdata/internal/server/models"
	imagesrepo "github.com/dmitrijs2005/beepdata/internal/server/repositories/images"
	imagesetsrepo "github.com/dmitrijs2005/beepdata/internal/server/repositories/imagesets"
	refreshtokensrepo "github.com/dmitrijs2005/beepdata/internal/server/repositories/refreshtokens"
	sessionsrepo "github.com/dmitrijs2005/beepdata/internal/server/repositories/sessions"
	usersrepo "github.com/dmitrijs2005/beepdata/internal/server/repositories/users"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		SessionValidityDuration:      time.Hour,
	}
}

// memDB is an in-memory stand-in for the Postgres schema. It enforces the
// same uniqueness and ownership rules the real tables do.
type memDB struct {
	mu        sync.Mutex
	users     map[string]*models.User
	refresh   map[string]*models.RefreshToken
	sessions  map[string]*models.Session
	sets      map[int64]*models.ImageSet
	images    map[int64]*models.Image
	nextSet   int64
	nextImage int64
	nextID    int
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]*models.User{},
		refresh:  map[string]*models.RefreshToken{},
		sessions: map[string]*models.Session{},
		sets:     map[int64]*models.ImageSet{},
		images:   map[int64]*models.Image{},
	}
}

func (m *memDB) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// addUser inserts a user directly, bypassing the service.
func (m *memDB) addUser(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id("u")
	m.users[id] = &models.User{ID: id, UserName: name, CreatedAt: time.Now()}
	return id
}

// memUsers

type memUsers struct{ m *memDB }

func (r memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if existing.UserName == u.UserName {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = r.m.id("u")
	u.CreatedAt = time.Now()
	cp := *u
	r.m.users[u.ID] = &cp
	return u, nil
}

func (r memUsers) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.UserName == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

// memRefresh

type memRefresh struct{ m *memDB }

func (r memRefresh) Create(ctx context.Context, userID, token string, validity time.Duration) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rt := &models.RefreshToken{ID: r.m.id("rt"), UserID: userID, Token: token, Expires: time.Now().Add(validity), CreatedAt: time.Now()}
	r.m.refresh[rt.ID] = rt
	cp := *rt
	return &cp, nil
}

func (r memRefresh) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rt := range r.m.refresh {
		if rt.Token == token {
			cp := *rt
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memRefresh) FindByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rt, ok := r.m.refresh[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r memRefresh) Delete(ctx context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, rt := range r.m.refresh {
		if rt.Token == token {
			delete(r.m.refresh, id)
		}
	}
	return nil
}

func (r memRefresh) DeleteByID(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.refresh[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.refresh, id)
	return nil
}

// memSessions

type memSessions struct{ m *memDB }

func (r memSessions) Create(ctx context.Context, s *models.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s.CreatedAt = time.Now()
	cp := *s
	r.m.sessions[s.ID] = &cp
	return nil
}

func (r memSessions) Get(ctx context.Context, id string) (*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (r memSessions) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.sessions, id)
	return nil
}

func (r memSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, s := range r.m.sessions {
		if s.Expired(now) {
			delete(r.m.sessions, id)
			n++
		}
	}
	return n, nil
}

// memImageSets

type memImageSets struct{ m *memDB }

func (r memImageSets) Create(ctx context.Context, set *models.ImageSet) (*models.ImageSet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.nextSet++
	set.ID = r.m.nextSet
	set.CreatedAt = time.Now()
	set.UpdatedAt = set.CreatedAt
	cp := *set
	cp.Images = nil
	r.m.sets[set.ID] = &cp
	return set, nil
}

func (r memImageSets) withUser(set *models.ImageSet) *models.ImageSet {
	cp := *set
	if u, ok := r.m.users[set.UserID]; ok {
		cp.UserName = u.UserName
	}
	return &cp
}

func (r memImageSets) ListByOwner(ctx context.Context, userID string) ([]*models.ImageSet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.ImageSet
	for _, s := range r.m.sets {
		if s.UserID == userID {
			out = append(out, r.withUser(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memImageSets) GetOwned(ctx context.Context, id int64, userID string) (*models.ImageSet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sets[id]
	if !ok || s.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return r.withUser(s), nil
}

func (r memImageSets) GetOwnedForUpdate(ctx context.Context, id int64, userID string) (*models.ImageSet, error) {
	return r.GetOwned(ctx, id, userID)
}

func (r memImageSets) Update(ctx context.Context, id int64, userID string, title, description *string) (*models.ImageSet, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sets[id]
	if !ok || s.UserID != userID {
		return nil, common.ErrorNotFound
	}
	if title != nil {
		s.Title = *title
	}
	if description != nil {
		s.Description = *description
	}
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (r memImageSets) Delete(ctx context.Context, id int64, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sets[id]
	if !ok || s.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.m.sets, id)
	// ON DELETE CASCADE
	for imgID, img := range r.m.images {
		if img.ImageSetID == id {
			delete(r.m.images, imgID)
		}
	}
	return nil
}

func (r memImageSets) CountByOwner(ctx context.Context, userID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, s := range r.m.sets {
		if s.UserID == userID {
			n++
		}
	}
	return n, nil
}

// memImages

type memImages struct{ m *memDB }

func (r memImages) Create(ctx context.Context, img *models.Image) (*models.Image, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.sets[img.ImageSetID]; !ok {
		return nil, common.ErrorNotFound
	}
	// UNIQUE (image_set_id, image_type)
	for _, existing := range r.m.images {
		if existing.ImageSetID == img.ImageSetID && existing.Type == img.Type {
			return nil, common.ErrorAlreadyExists
		}
	}
	r.m.nextImage++
	img.ID = r.m.nextImage
	img.UploadedAt = time.Now()
	cp := *img
	r.m.images[img.ID] = &cp
	return img, nil
}

func (r memImages) sorted(filter func(*models.Image) bool) []*models.Image {
	var out []*models.Image
	for _, img := range r.m.images {
		if filter(img) {
			cp := *img
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ImageSetID != out[j].ImageSetID {
			return out[i].ImageSetID < out[j].ImageSetID
		}
		return out[i].Type.Rank() < out[j].Type.Rank()
	})
	return out
}

func (r memImages) ListBySet(ctx context.Context, setID int64) ([]*models.Image, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.sorted(func(img *models.Image) bool { return img.ImageSetID == setID }), nil
}

func (r memImages) ListByOwner(ctx context.Context, userID string) ([]*models.Image, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.sorted(func(img *models.Image) bool {
		s, ok := r.m.sets[img.ImageSetID]
		return ok && s.UserID == userID
	}), nil
}

func (r memImages) ExistsType(ctx context.Context, setID int64, t models.ImageType) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, img := range r.m.images {
		if img.ImageSetID == setID && img.Type == t {
			return true, nil
		}
	}
	return false, nil
}

func (r memImages) GetOwned(ctx context.Context, id int64, userID string) (*models.Image, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	img, ok := r.m.images[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if s, ok := r.m.sets[img.ImageSetID]; !ok || s.UserID != userID {
		return nil, common.ErrorNotFound
	}
	cp := *img
	return &cp, nil
}

func (r memImages) Delete(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.images[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.images, id)
	return nil
}

// fakeRepoManager vends the in-memory repositories. The override hooks let
// a test swap in a failing or racy repository.
type fakeRepoManager struct {
	m *memDB

	users     usersrepo.Repository
	refresh   refreshtokensrepo.Repository
	sessions  sessionsrepo.Repository
	imageSets imagesetsrepo.Repository
	images    imagesrepo.Repository
}

func newFakeRepoManager(m *memDB) *fakeRepoManager {
	return &fakeRepoManager{m: m}
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (f *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository {
	if f.users != nil {
		return f.users
	}
	return memUsers{f.m}
}

func (f *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository {
	if f.refresh != nil {
		return f.refresh
	}
	return memRefresh{f.m}
}

func (f *fakeRepoManager) Sessions(dbx.DBTX) sessionsrepo.Repository {
	if f.sessions != nil {
		return f.sessions
	}
	return memSessions{f.m}
}

func (f *fakeRepoManager) ImageSets(dbx.DBTX) imagesetsrepo.Repository {
	if f.imageSets != nil {
		return f.imageSets
	}
	return memImageSets{f.m}
}

func (f *fakeRepoManager) Images(dbx.DBTX) imagesrepo.Repository {
	if f.images != nil {
		return f.images
	}
	return memImages{f.m}
}

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	putErr    error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) URL(ctx context.Context, key string) (string, error) {
	return "https://cdn.example/" + key, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func nopLogger() logging.Logger { return logging.Nop() }
