package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kevinjam/farmkeeper-sub001/pkg/logger"
)

// RequestIDMiddleware tags every request with an ID, honoring one supplied by
// the client so IDs survive proxy hops. The ID lands in the context for the
// request logger and on the response header for clients.
func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(logger.RequestIDKey)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(logger.RequestIDKey, id)
		c.Response().Header().Set(logger.RequestIDKey, id)
		return next(c)
	}
}
