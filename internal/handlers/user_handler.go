package handlers

import (
	"net/http"
	"strconv"

	"github.com/bcetconnect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, followRepo repositories.FollowRepository) *UserHandler {
	return &UserHandler{
		userRepository:   userRepo,
		followRepository: followRepo,
	}
}

// RegisterUserRoutes registers user profile routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/users/:id", h.GetUser)
}

// GetUser returns another member's compact profile with follow counts
func (h *UserHandler) GetUser(c echo.Context) error {
	callerID := getUserIDFromContext(c)
	if callerID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	user, err := h.userRepository.GetUserByID(uint(id))
	if err != nil {
		return httpError(err)
	}

	followerIDs, err := h.followRepository.GetFollowerIDs(user.ID)
	if err != nil {
		return httpError(err)
	}
	followingIDs, err := h.followRepository.GetFollowingIDs(user.ID)
	if err != nil {
		return httpError(err)
	}

	isFollowing := false
	for _, followerID := range followerIDs {
		if followerID == callerID {
			isFollowing = true
			break
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"user":        user.ToCompact(),
			"followers":   len(followerIDs),
			"following":   len(followingIDs),
			"isFollowing": isFollowing,
		},
	})
}
