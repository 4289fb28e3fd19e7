package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/beepdata/internal/common"
)

// Identity is who is making the request.
type Identity struct {
	UserID string
	// TokenID is set for bearer requests only.
	TokenID string
	// SessionID is set for cookie requests only.
	SessionID string
}

// IdentityResolver extracts a caller identity from a request.
type IdentityResolver interface {
	Resolve(r *http.Request) (*Identity, error)
}

type bearerResolver struct {
	users UserService
}

func (b bearerResolver) Resolve(r *http.Request) (*Identity, error) {
	header := r.Header.Get(common.AuthorizationHeaderName)
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return nil, common.ErrorUnauthorized
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
	if token == "" {
		return nil, common.ErrorUnauthorized
	}

	id, err := b.users.ResolveAccessToken(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: id.UserID, TokenID: id.TokenID}, nil
}

type sessionResolver struct {
	users UserService
}

func (sr sessionResolver) Resolve(r *http.Request) (*Identity, error) {
	c, err := r.Cookie(common.SessionCookieName)
	if err != nil || c.Value == "" {
		return nil, common.ErrorUnauthorized
	}
	userID, err := sr.users.ResolveSession(r.Context(), c.Value)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: userID, SessionID: c.Value}, nil
}

type ctxKey string

const identityKey ctxKey = "identity"
const identityHolderKey ctxKey = "identity_holder"

type identityHolder struct {
	userID string
}

func withIdentityHolder(ctx context.Context, h *identityHolder) context.Context {
	return context.WithValue(ctx, identityHolderKey, h)
}

func withIdentity(ctx context.Context, id *Identity) context.Context {
	if h, ok := ctx.Value(identityHolderKey).(*identityHolder); ok {
		h.userID = id.UserID
	}
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity stored by the identity middleware.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// requireIdentity runs next only for requests resolver accepts. Rejected
// requests are answered by deny.
func (s *HTTPServer) requireIdentity(resolver IdentityResolver, deny func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r)
			if err != nil {
				deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// denyJSON answers with the mapped API error. Anything that is not an
// internal failure becomes 401.
func (s *HTTPServer) denyJSON(w http.ResponseWriter, r *http.Request, err error) {
	status, _, _ := statusFor(err)
	if status != http.StatusInternalServerError {
		err = common.ErrorUnauthorized
	}
	s.writeError(w, r, err)
}

// denyRedirect sends browsers to the login page.
func (s *HTTPServer) denyRedirect(w http.ResponseWriter, r *http.Request, err error) {
	http.Redirect(w, r, loginPath, http.StatusFound)
}
