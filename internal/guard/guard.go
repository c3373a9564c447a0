// Package guard resolves a URL farm slug to a farm record and enforces that
// the requesting user owns it. This is the only authorization predicate in
// the system: roles on the user record are not consulted.
package guard

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kevinjam/farmkeeper-sub001/internal/middleware"
	"github.com/kevinjam/farmkeeper-sub001/internal/model"
	"github.com/kevinjam/farmkeeper-sub001/internal/store"
	"github.com/kevinjam/farmkeeper-sub001/pkg/logger"
	"github.com/kevinjam/farmkeeper-sub001/prometheus"
)

// FarmKey is the context key under which the resolved farm is stored.
const FarmKey = "farm"

var (
	// ErrNotFound means no farm exists for the slug.
	ErrNotFound = errors.New("farm not found")
	// ErrForbidden means the farm exists but the user does not own it.
	ErrForbidden = errors.New("not the farm owner")
)

// Resolve loads the farm addressed by the URL slug and asserts the user owns
// it. The slug decides which farm is being accessed; the verified user ID
// only proves who is asking, so the user's own farm reference is never
// consulted here. The check runs on every call because ownership can change
// between token issuance and the current request.
func Resolve(ctx context.Context, st store.Store, slug string, userID uint) (*model.Farm, error) {
	farm, err := st.FindFarmBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if farm.OwnerID != userID {
		return nil, ErrForbidden
	}
	return farm, nil
}

// RequireFarmOwner gates a route group on farm ownership. It expects the
// route gate to have stored the verified user ID, resolves the :slug
// parameter and stashes the farm in the context for the handler.
func RequireFarmOwner(st store.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			userID, ok := c.Get(middleware.UserIDKey).(uint)
			if !ok {
				// Only reachable if the route is not behind the gate,
				// which is a wiring bug.
				log.Error("Ownership check without verified user")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			slug := c.Param("slug")
			farm, err := Resolve(c.Request().Context(), st, slug, userID)
			switch {
			case errors.Is(err, ErrNotFound):
				return c.JSON(http.StatusNotFound, echo.Map{"error": "farm not found"})
			case errors.Is(err, ErrForbidden):
				log.Warn("Ownership denied",
					zap.String("slug", slug),
					zap.Uint("user_id", userID))
				prometheus.OwnershipDeniedCounter.Inc()
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			case err != nil:
				log.Error("Failed to resolve farm", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			c.Set(FarmKey, farm)
			return next(c)
		}
	}
}

// FarmFromContext returns the farm resolved by RequireFarmOwner.
func FarmFromContext(c echo.Context) *model.Farm {
	farm, _ := c.Get(FarmKey).(*model.Farm)
	return farm
}
