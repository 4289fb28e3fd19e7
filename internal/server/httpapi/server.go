// Package httpapi is the HTTP boundary of beepdata: the token API under
// /api, the cookie-session web surface and the operational endpoints.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/beepdata/internal/logging"
	"github.com/dmitrijs2005/beepdata/internal/server/models"
	"github.com/dmitrijs2005/beepdata/internal/server/services"
)

// UserService is what the handlers need from services.UserService.
type UserService interface {
	Register(ctx context.Context, username, password, email string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, *services.TokenPair, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	IssueTokens(ctx context.Context, userID string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	ResolveAccessToken(ctx context.Context, token string) (*services.Identity, error)
	Logout(ctx context.Context, tokenID string) error
	Profile(ctx context.Context, userID string) (*models.User, error)
	CreateSession(ctx context.Context, userID string) (*models.Session, error)
	ResolveSession(ctx context.Context, id string) (string, error)
	DeleteSession(ctx context.Context, id string) error
}

// ImageSetService is what the handlers need from services.ImageSetService.
type ImageSetService interface {
	ListImageSets(ctx context.Context, owner string) ([]*models.ImageSet, error)
	CreateImageSet(ctx context.Context, owner, title, description string) (*models.ImageSet, error)
	GetImageSet(ctx context.Context, owner string, id int64) (*models.ImageSet, error)
	UpdateImageSet(ctx context.Context, owner string, id int64, patch services.ImageSetPatch) (*models.ImageSet, error)
	DeleteImageSet(ctx context.Context, owner string, id int64) error
	AddImage(ctx context.Context, owner string, setID int64, upload services.ImageUpload) (*models.Image, error)
	DeleteImage(ctx context.Context, owner string, imageID int64) error
	ImageURL(ctx context.Context, img *models.Image) (string, error)
	CreateImageSetWithImages(ctx context.Context, owner string, uploads []services.ImageUpload) (*models.ImageSet, error)
}

type Options struct {
	Address        string
	MaxUploadSize  int64
	RateLimitRPS   float64
	RateLimitBurst int
}

type HTTPServer struct {
	address       string
	users         UserService
	imageSets     ImageSetService
	logger        logging.Logger
	metrics       *Metrics
	limiter       *RateLimiter
	maxUploadSize int64
	handler       http.Handler
}

func NewHTTPServer(opts Options, l logging.Logger, us UserService, is ImageSetService) *HTTPServer {
	s := &HTTPServer{
		address:       opts.Address,
		users:         us,
		imageSets:     is,
		logger:        l.With("module", "http_server"),
		metrics:       NewMetrics(),
		maxUploadSize: opts.MaxUploadSize,
	}
	s.limiter = NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, s.logger)
	s.handler = s.routes()
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *HTTPServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan struct{})
	s.limiter.StartCleanup(time.Minute, done)

	go func() {
		<-ctx.Done()
		close(done)
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
