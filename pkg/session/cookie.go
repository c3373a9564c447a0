package session

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kevinjam/farmkeeper-sub001/pkg/jwtutil"
)

// Cookie names. TokenCookie carries the session token and is never readable
// by client scripts. StatusCookie is a plain marker mirroring token presence
// so non-privileged client code can short-circuit UI state without access to
// the token itself.
const (
	TokenCookie  = "token"
	StatusCookie = "auth-status"
)

// Manager writes and reads the session cookies. Lifetime matches the token
// service's validity window.
type Manager struct {
	secure bool
}

// NewManager creates a cookie manager. secure controls the Secure attribute
// and should be on outside development.
func NewManager(secure bool) *Manager {
	return &Manager{secure: secure}
}

// Attach sets the token cookie and the auth-status marker on the response.
func (m *Manager) Attach(c echo.Context, token string) {
	maxAge := int(jwtutil.TokenTTL.Seconds())
	c.SetCookie(&http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     StatusCookie,
		Value:    "1",
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: false,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires both cookies. Clearing an already-cleared session produces
// the same result, it is not an error.
func (m *Manager) Clear(c echo.Context) {
	for _, name := range []string{TokenCookie, StatusCookie} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == TokenCookie,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// Read extracts the session token from the request. No validation happens
// here, that is the token service's job.
func (m *Manager) Read(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(TokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
