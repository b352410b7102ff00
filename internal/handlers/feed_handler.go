package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bcetconnect/backend/internal/media"
	"github.com/bcetconnect/backend/internal/models"
	"github.com/bcetconnect/backend/internal/repositories"
	"github.com/bcetconnect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	feedRepository   repositories.FeedRepository
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
	notifications    *services.NotificationService
	mediaCleaner     media.Cleaner
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(
	feedRepo repositories.FeedRepository,
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	notifications *services.NotificationService,
	mediaCleaner media.Cleaner,
) *FeedHandler {
	return &FeedHandler{
		feedRepository:   feedRepo,
		userRepository:   userRepo,
		followRepository: followRepo,
		notifications:    notifications,
		mediaCleaner:     mediaCleaner,
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.POST("/feed", h.CreatePost)
	g.GET("/feed/:id", h.GetPost)
	g.PUT("/feed/:id", h.UpdatePost)
	g.DELETE("/feed/:id", h.DeletePost)
	g.POST("/feed/:id/like", h.ToggleLike)
	g.POST("/feed/:id/comment", h.AddComment)
}

// GetFeed returns the personalized feed for the current user
func (h *FeedHandler) GetFeed(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	feedType := c.QueryParam("type")
	if feedType == "" {
		feedType = "ALL"
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	// The viewer must resolve to a known account before the visibility sets
	// are computed.
	if _, err := h.userRepository.GetUserByID(userID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown user")
	}

	followingIDs, err := h.followRepository.GetFollowingIDs(userID)
	if err != nil {
		return httpError(err)
	}
	communityIDs, err := h.userRepository.GetCommunityIDs(userID)
	if err != nil {
		return httpError(err)
	}

	items, err := h.feedRepository.GetVisibleFeed(c.Request().Context(), repositories.FeedQuery{
		ViewerID:     userID,
		FollowingIDs: followingIDs,
		CommunityIDs: communityIDs,
		Type:         feedType,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"items": items},
		"meta":    echo.Map{"page": page, "limit": limit, "type": feedType},
	})
}

// CreatePost creates a feed item and notifies the author's followers
func (h *FeedHandler) CreatePost(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Text == "" && len(req.Media) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Post must contain text or media")
	}
	if req.Type == models.FeedTypeAdmin && getRoleFromContext(c) != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "Admin role required for announcements")
	}

	item := &models.FeedItem{
		AuthorID:    userID,
		Type:        req.Type,
		Text:        req.Text,
		Media:       req.Media,
		CommunityID: req.CommunityID,
		RefID:       req.RefID,
		Visibility:  req.Visibility,
	}
	if err := h.feedRepository.CreateItem(c.Request().Context(), item); err != nil {
		return httpError(err)
	}

	// Follower fan-out is best-effort and off the request path.
	go h.notifyFollowers(userID, item.ID.Hex())

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": item})
}

func (h *FeedHandler) notifyFollowers(authorID uint, postID string) {
	followerIDs, err := h.followRepository.GetFollowerIDs(authorID)
	if err != nil {
		slog.Error("follower lookup for post fan-out failed",
			slog.Uint64("author", uint64(authorID)),
			slog.String("error", err.Error()),
			slog.String("module", "feed"),
		)
		return
	}
	ctx := context.Background()
	for _, followerID := range followerIDs {
		if err := h.notifications.NotifyNewPost(ctx, followerID, authorID, postID); err != nil {
			slog.Error("new-post notification failed",
				slog.Uint64("recipient", uint64(followerID)),
				slog.String("error", err.Error()),
				slog.String("module", "feed"),
			)
		}
	}
}

// GetPost returns one feed item if it is visible to the caller
func (h *FeedHandler) GetPost(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	item, err := h.feedRepository.GetItemByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	visible := item.AuthorID == userID ||
		item.Type == models.FeedTypeAdmin ||
		item.Visibility == models.VisibilityPublic
	if !visible && item.Visibility == models.VisibilityFollowers {
		visible, err = h.followRepository.IsFollowing(userID, item.AuthorID)
		if err != nil {
			return httpError(err)
		}
	}
	if !visible && item.Visibility == models.VisibilityCommunity {
		communityIDs, err := h.userRepository.GetCommunityIDs(userID)
		if err != nil {
			return httpError(err)
		}
		for _, id := range communityIDs {
			if id == item.CommunityID {
				visible = true
				break
			}
		}
	}
	if !visible {
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": item})
}

// UpdatePost edits the caller's own feed item
func (h *FeedHandler) UpdatePost(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	patch := repositories.FeedPatch{}
	if req.Text != "" {
		patch.Text = &req.Text
	}
	if req.Visibility != "" {
		patch.Visibility = &req.Visibility
	}

	item, err := h.feedRepository.UpdateItem(c.Request().Context(), c.Param("id"), userID, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": item})
}

// DeletePost soft-deletes a feed item and cleans up its media off the request
// path
func (h *FeedHandler) DeletePost(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	isAdmin := getRoleFromContext(c) == models.RoleAdmin

	item, err := h.feedRepository.SoftDeleteItem(c.Request().Context(), c.Param("id"), userID, isAdmin)
	if err != nil {
		return httpError(err)
	}

	if len(item.Media) > 0 {
		refs := item.Media
		go func() {
			if err := h.mediaCleaner.Delete(context.Background(), refs); err != nil {
				slog.Warn("media cleanup failed",
					slog.String("post", item.ID.Hex()),
					slog.String("error", err.Error()),
					slog.String("module", "feed"),
				)
			}
		}()
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ToggleLike likes or unlikes a feed item and notifies the author on like
func (h *FeedHandler) ToggleLike(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	postID := c.Param("id")
	likes, liked, err := h.feedRepository.ToggleLike(c.Request().Context(), postID, userID)
	if err != nil {
		return httpError(err)
	}

	if liked {
		if item, err := h.feedRepository.GetItemByID(c.Request().Context(), postID); err == nil && item.AuthorID != userID {
			go func(authorID uint) {
				if err := h.notifications.NotifyLike(context.Background(), authorID, userID, postID); err != nil {
					slog.Error("like notification failed",
						slog.String("error", err.Error()),
						slog.String("module", "feed"),
					)
				}
			}(item.AuthorID)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"likes": likes, "liked": liked}})
}

// AddComment appends a comment and notifies the author
func (h *FeedHandler) AddComment(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.AddCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	postID := c.Param("id")
	item, err := h.feedRepository.AddComment(c.Request().Context(), postID, models.FeedComment{
		AuthorID: userID,
		Text:     req.Text,
	})
	if err != nil {
		return httpError(err)
	}

	if item.AuthorID != userID {
		go func(authorID uint) {
			if err := h.notifications.NotifyComment(context.Background(), authorID, userID, postID); err != nil {
				slog.Error("comment notification failed",
					slog.String("error", err.Error()),
					slog.String("module", "feed"),
				)
			}
		}(item.AuthorID)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": item})
}
