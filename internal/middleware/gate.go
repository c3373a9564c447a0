package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kevinjam/farmkeeper-sub001/pkg/jwtutil"
	"github.com/kevinjam/farmkeeper-sub001/pkg/logger"
	"github.com/kevinjam/farmkeeper-sub001/pkg/session"
	"github.com/kevinjam/farmkeeper-sub001/prometheus"
)

// Context keys set by the gate for downstream handlers.
const (
	UserIDKey   = "user_id"
	FarmSlugKey = "farm_slug"
)

// Redirect targets. The gate never redirects anywhere else.
const (
	LoginPath      = "/login"
	OnboardingPath = "/onboarding"
)

// DashboardPath returns the dashboard URL for a farm slug, or the onboarding
// path for users who have no farm yet.
func DashboardPath(slug string) string {
	if slug == "" {
		return OnboardingPath
	}
	return "/" + slug + "/dashboard"
}

type pathClass int

const (
	pathNeutral pathClass = iota
	pathProtected
	pathPublicOnly
)

// Path classification. This list is the single place protection rules live;
// handlers must not add their own authentication checks. Protected paths are
// the private API, the onboarding flow and the farm dashboards. Public-only
// paths are the screens an authenticated user is bounced away from.
var (
	publicOnlyPaths = map[string]bool{
		"/login":           true,
		"/register":        true,
		"/forgot-password": true,
	}

	dashboardPattern = regexp.MustCompile(`^/[a-z0-9][\w-]*/dashboard(?:/|$)`)
)

func classify(path string) pathClass {
	if publicOnlyPaths[path] {
		return pathPublicOnly
	}
	if strings.HasPrefix(path, "/api/") {
		return pathProtected
	}
	if path == OnboardingPath || strings.HasPrefix(path, OnboardingPath+"/") {
		return pathProtected
	}
	if dashboardPattern.MatchString(path) {
		return pathProtected
	}
	return pathNeutral
}

// Gate is the single authentication chokepoint. It classifies every inbound
// path, verifies the session cookie when present, and resolves to exactly
// one of: redirect to login, redirect to the caller's own dashboard, or pass
// through. Verified claims are stored in the request context; an invalid or
// expired token on a protected path is treated identically to no token.
func Gate(tokens *jwtutil.Service, cookies *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			var claims *jwtutil.Claims
			if tokenString, ok := cookies.Read(c); ok {
				claims, _ = tokens.Verify(tokenString)
			}

			switch classify(c.Request().URL.Path) {
			case pathProtected:
				if claims == nil {
					log.Debug("Unauthenticated request to protected path",
						zap.String("path", c.Request().URL.Path))
					prometheus.RecordGateRedirect("unauthenticated")
					return c.Redirect(http.StatusFound, LoginPath)
				}
			case pathPublicOnly:
				if claims != nil {
					prometheus.RecordGateRedirect("already_authenticated")
					return c.Redirect(http.StatusFound, DashboardPath(claims.FarmSlug))
				}
			}

			if claims != nil {
				c.Set(UserIDKey, claims.UserID)
				c.Set(FarmSlugKey, claims.FarmSlug)
			}

			return next(c)
		}
	}
}
