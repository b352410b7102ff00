package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bcetconnect/backend/internal/models"
	"github.com/bcetconnect/backend/internal/repositories"
	"github.com/bcetconnect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications  *services.NotificationService
	userRepository repositories.UserRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{
		notifications:  notifications,
		userRepository: userRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.POST("/notifications/:id/read", h.MarkAsRead)
	g.POST("/notifications/read-all", h.MarkAllAsRead)
	g.POST("/notifications/:id/dismiss", h.Dismiss)
	g.POST("/notifications/archive", h.Archive)
	g.DELETE("/notifications/:id", h.DeleteNotification)
}

// RegisterAdminRoutes registers admin-only notification routes
func (h *NotificationHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/admin/broadcast", h.Broadcast)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor *models.UserCompact `json:"actor,omitempty"`
}

func (h *NotificationHandler) enrichNotifications(notifications []models.Notification) []EnrichedNotification {
	enriched := make([]EnrichedNotification, len(notifications))
	userCache := make(map[uint]models.UserCompact)

	for i, n := range notifications {
		enriched[i] = EnrichedNotification{Notification: n}
		if n.ActorID == nil {
			continue
		}
		if actor, ok := userCache[*n.ActorID]; ok {
			enriched[i].Actor = &actor
		} else if user, err := h.userRepository.GetUserByID(*n.ActorID); err == nil {
			compact := user.ToCompact()
			userCache[*n.ActorID] = compact
			enriched[i].Actor = &compact
		}
	}
	return enriched
}

// GetNotifications returns the caller's paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	onlyUnread := c.QueryParam("onlyUnread") == "true" || c.QueryParam("onlyUnread") == "1"

	list, err := h.notifications.List(c.Request().Context(), userID, services.ListOptions{
		Page:       page,
		Limit:      limit,
		OnlyUnread: onlyUnread,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"items":       h.enrichNotifications(list.Items),
			"total":       list.Total,
			"page":        list.Page,
			"limit":       list.Limit,
			"unreadCount": list.UnreadCount,
		},
	})
}

// GetUnreadCount returns the caller's unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	count, err := h.notifications.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"unreadCount": count}})
}

// MarkAsRead marks one owned notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	notifID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}

	n, err := h.notifications.MarkRead(c.Request().Context(), userID, uint(notifID))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": n})
}

// MarkAllAsRead marks all of the caller's notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	affected, err := h.notifications.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"modified": affected}})
}

// Dismiss soft-dismisses one owned notification
func (h *NotificationHandler) Dismiss(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	notifID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}

	if err := h.notifications.Dismiss(c.Request().Context(), userID, uint(notifID)); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Archive flags the caller's notifications older than the cutoff
func (h *NotificationHandler) Archive(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	days, err := strconv.Atoi(c.QueryParam("olderThanDays"))
	if err != nil || days < 1 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	archived, err := h.notifications.ArchiveOlderThan(c.Request().Context(), userID, cutoff)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"archived": archived}})
}

// DeleteNotification hard-deletes one owned notification
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	notifID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}

	if err := h.notifications.Delete(c.Request().Context(), userID, uint(notifID)); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Broadcast creates an admin announcement for every user (or one role)
func (h *NotificationHandler) Broadcast(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	if getRoleFromContext(c) != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "Admin role required")
	}

	var req models.BroadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	created, err := h.notifications.Broadcast(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"created": created}})
}
