package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/bcetconnect/backend/internal/metrics"
	"github.com/bcetconnect/backend/internal/middleware"
	"github.com/bcetconnect/backend/internal/realtime"
	"github.com/bcetconnect/backend/internal/repositories"
	"github.com/bcetconnect/backend/internal/services"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// sendQueueSize bounds the per-connection outbound buffer; a client that
// cannot drain it loses events rather than blocking delivery to everyone else
const sendQueueSize = 16

var errChannelBusy = errors.New("send queue full")

// socketCommand is a client-to-server message on the notification socket
type socketCommand struct {
	Type string `json:"type"`
	ID   uint   `json:"id,omitempty"`
}

// wsChannel adapts a websocket connection to realtime.Channel. All writes go
// through the outbound queue so there is exactly one writer goroutine per
// connection.
type wsChannel struct {
	id      string
	conn    *websocket.Conn
	out     chan realtime.Event
	closing sync.Once
	done    chan struct{}
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan realtime.Event, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (ch *wsChannel) ID() string { return ch.id }

// Send enqueues an event without blocking. A full queue drops the event; the
// client reconciles on its next list/unread-count poll.
func (ch *wsChannel) Send(event realtime.Event) error {
	select {
	case <-ch.done:
		return errors.New("channel closed")
	default:
	}
	select {
	case ch.out <- event:
		return nil
	default:
		return errChannelBusy
	}
}

func (ch *wsChannel) close() {
	ch.closing.Do(func() {
		close(ch.done)
		ch.conn.Close()
	})
}

// writePump is the single writer for the connection
func (ch *wsChannel) writePump() {
	for {
		select {
		case <-ch.done:
			return
		case event := <-ch.out:
			if err := ch.conn.WriteJSON(event); err != nil {
				slog.Debug("socket write failed",
					slog.String("handle", ch.id),
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				ch.close()
				return
			}
		}
	}
}

// SocketHandler upgrades authenticated connections into registered delivery
// channels
type SocketHandler struct {
	registry      *realtime.Registry
	users         repositories.UserRepository
	notifications *services.NotificationService
	recorder      metrics.Recorder
	jwtSecret     string
}

// NewSocketHandler creates a new SocketHandler
func NewSocketHandler(registry *realtime.Registry, users repositories.UserRepository, notifications *services.NotificationService, recorder metrics.Recorder, jwtSecret string) *SocketHandler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &SocketHandler{
		registry:      registry,
		users:         users,
		notifications: notifications,
		recorder:      recorder,
		jwtSecret:     jwtSecret,
	}
}

// RegisterSocketRoutes registers the realtime endpoint
func (h *SocketHandler) RegisterSocketRoutes(e *echo.Echo) {
	e.GET("/ws/notifications", h.HandleConnection)
}

// tokenFromRequest accepts the credential either as a query parameter (the
// usual path for browser websocket clients) or a bearer header
func tokenFromRequest(c echo.Context) string {
	if token := c.QueryParam("token"); token != "" {
		return token
	}
	authHeader := c.Request().Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// HandleConnection authenticates, upgrades and services one realtime channel
// until the peer disconnects
func (h *SocketHandler) HandleConnection(c echo.Context) error {
	token := tokenFromRequest(c)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication token required")
	}
	claims, err := middleware.ParseToken(h.jwtSecret, token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authentication token")
	}
	user, err := h.users.GetUserByID(claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unknown user")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}

	ch := newWSChannel(conn)
	defer ch.close()

	h.registry.Register(user.ID, user.Role, ch)
	h.recorder.ChannelOpened()
	defer func() {
		h.registry.Unregister(ch.ID())
		h.recorder.ChannelClosed()
	}()

	go ch.writePump()

	slog.Info("socket connected",
		slog.String("handle", ch.ID()),
		slog.Uint64("user", uint64(user.ID)),
		slog.String("module", "socket"),
	)

	ch.Send(realtime.Event{
		Name: realtime.EventConnected,
		Data: map[string]interface{}{"userId": user.ID},
	})

	ctx := c.Request().Context()
	for {
		var cmd socketCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				if closeErr.Code != websocket.CloseNormalClosure && closeErr.Code != websocket.CloseGoingAway {
					slog.Debug("socket closed",
						slog.String("handle", ch.ID()),
						slog.String("error", closeErr.Error()),
						slog.String("module", "socket"),
					)
				}
			} else {
				slog.Debug("socket read failed",
					slog.String("handle", ch.ID()),
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
			}
			return nil
		}

		switch cmd.Type {
		case "mark-read":
			if cmd.ID == 0 {
				continue
			}
			if _, err := h.notifications.MarkRead(ctx, user.ID, cmd.ID); err != nil {
				slog.Debug("socket mark-read failed",
					slog.Uint64("notification", uint64(cmd.ID)),
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
			}
		case "mark-all-read":
			if _, err := h.notifications.MarkAllRead(ctx, user.ID); err != nil {
				slog.Debug("socket mark-all-read failed",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
			}
		case "ping":
			// heartbeat, nothing to do
		default:
			slog.Info("unknown socket command",
				slog.String("type", cmd.Type),
				slog.String("module", "socket"),
			)
		}
	}
}
