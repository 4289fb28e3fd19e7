package common

const (
	// AuthorizationHeaderName carries "Bearer <access token>" on API requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "

	// SessionCookieName is the cookie holding the web session id.
	SessionCookieName = "sessionid"
)
