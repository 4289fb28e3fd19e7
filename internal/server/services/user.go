// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, API token pairs backed by
// server-stored refresh tokens, and web sessions.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/beepdata/internal/common"
	"github.com/dmitrijs2005/beepdata/internal/dbx"
	"github.com/dmitrijs2005/beepdata/internal/logging"
	"github.com/dmitrijs2005/beepdata/internal/server/auth"
	"github.com/dmitrijs2005/beepdata/internal/server/config"
	"github.com/dmitrijs2005/beepdata/internal/server/models"
	"github.com/dmitrijs2005/beepdata/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Identity is the caller resolved from an access token. TokenID names the
// refresh token row backing it and is what Logout revokes.
type Identity struct {
	UserID  string
	TokenID string
}

// UserService provides authentication-related operations.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	log                          logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	sessionValidityDuration      time.Duration
	now                          func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		log:                          log.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		sessionValidityDuration:      cfg.SessionValidityDuration,
		now:                          time.Now,
	}
}

// Register creates an account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateAccount(username, password, email); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	_, err := repo.GetUserByLogin(ctx, username)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateUsername
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u, err := repo.Create(ctx, &models.User{UserName: username, Email: email, PasswordHash: hash})
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Authenticate checks username and password. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// spend the same bcrypt time as for a real account
			_ = auth.CheckPassword(dummyHash(), password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrorInternal
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token pair.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, *TokenPair, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.IssueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// IssueTokens mints a new access/refresh pair for userID.
func (s *UserService) IssueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	return s.generateTokenPair(ctx, userID, s.db)
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)
		if err := repoTx.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// ResolveAccessToken verifies an access token and checks that the pair it
// belongs to has not been revoked.
func (s *UserService) ResolveAccessToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	if claims.ID == "" {
		return nil, common.ErrorUnauthorized
	}

	rt, err := s.repomanager.RefreshTokens(s.db).FindByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching token: %w", err)
	}
	if rt.UserID != claims.UserID {
		return nil, common.ErrorUnauthorized
	}

	return &Identity{UserID: claims.UserID, TokenID: claims.ID}, nil
}

// Logout revokes the token pair identified by tokenID.
func (s *UserService) Logout(ctx context.Context, tokenID string) error {
	err := s.repomanager.RefreshTokens(s.db).DeleteByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTokenNotFound
		}
		return fmt.Errorf("error deleting token: %w", err)
	}
	return nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// CreateSession starts a web session for userID.
func (s *UserService) CreateSession(ctx context.Context, userID string) (*models.Session, error) {
	id, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	session := &models.Session{
		ID:      id,
		UserID:  userID,
		Expires: s.now().Add(s.sessionValidityDuration),
	}
	if err := s.repomanager.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return session, nil
}

// ResolveSession returns the user behind a live session id.
func (s *UserService) ResolveSession(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", common.ErrorUnauthorized
	}
	session, err := s.repomanager.Sessions(s.db).Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("error searching session: %w", err)
	}
	if session.Expired(s.now()) {
		return "", common.ErrorUnauthorized
	}
	return session.UserID, nil
}

func (s *UserService) DeleteSession(ctx context.Context, id string) error {
	return s.repomanager.Sessions(s.db).Delete(ctx, id)
}

// PurgeExpiredSessions drops sessions that have already ended.
func (s *UserService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.repomanager.Sessions(s.db).DeleteExpired(ctx, s.now())
}

// --- helpers below ---

func validateAccount(username, password, email string) error {
	switch {
	case username == "" || password == "":
		return fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	case utf8.RuneCountInString(username) > models.MaxUserNameLength:
		return fmt.Errorf("%w: username must be at most %d characters", common.ErrorValidation, models.MaxUserNameLength)
	case utf8.RuneCountInString(email) > models.MaxEmailLength:
		return fmt.Errorf("%w: email must be at most %d characters", common.ErrorValidation, models.MaxEmailLength)
	case len(password) > models.MaxPasswordBytes:
		return fmt.Errorf("%w: password must be at most %d bytes", common.ErrorValidation, models.MaxPasswordBytes)
	}
	return nil
}

var (
	dummyHashOnce  sync.Once
	dummyHashValue []byte
)

func dummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHashValue, _ = auth.HashPassword(string(common.GenerateRandByteArray(16)))
	})
	return dummyHashValue
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	refreshRepo := s.repomanager.RefreshTokens(tx)
	rt, err := refreshRepo.Create(ctx, userID, refresh, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	access, err := auth.GenerateToken(userID, rt.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
