package handlers

import (
	"errors"
	"net/http"

	"github.com/bcetconnect/backend/internal/middleware"
	"github.com/bcetconnect/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// getUserIDFromContext returns the authenticated user id, or 0 if the request
// carries no verified claims
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get(middleware.ContextUserKey).(*models.JwtCustomClaims)
	if !ok {
		return 0
	}
	return claims.UserID
}

func getRoleFromContext(c echo.Context) string {
	claims, ok := c.Get(middleware.ContextUserKey).(*models.JwtCustomClaims)
	if !ok {
		return ""
	}
	return claims.Role
}

// httpError maps service errors to the boundary contract: 400 for malformed
// input, 404 for absent-or-not-owned, 500 with a generic message otherwise so
// store internals never leak.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}
