package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bcetconnect/backend/internal/middleware"
	"github.com/bcetconnect/backend/internal/models"
	"github.com/bcetconnect/backend/internal/services"
	"github.com/bcetconnect/backend/pkg/validators"
	"github.com/labstack/echo/v4"
)

// stubNotificationRepository holds notifications in memory for handler tests
type stubNotificationRepository struct {
	nextID        uint
	notifications []models.Notification
}

func newStubNotificationRepository() *stubNotificationRepository {
	return &stubNotificationRepository{nextID: 1}
}

func (r *stubNotificationRepository) Create(_ context.Context, n *models.Notification) error {
	n.ID = r.nextID
	r.nextID++
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *stubNotificationRepository) ListByRecipient(_ context.Context, recipientID uint, page, limit int, onlyUnread bool) ([]models.Notification, int64, error) {
	var matched []models.Notification
	for _, n := range r.notifications {
		if n.RecipientID != recipientID || n.Archived {
			continue
		}
		if onlyUnread && n.IsRead {
			continue
		}
		matched = append(matched, n)
	}
	return matched, int64(len(matched)), nil
}

func (r *stubNotificationRepository) UnreadCount(_ context.Context, recipientID uint) (int64, error) {
	var count int64
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.IsRead && !n.Archived {
			count++
		}
	}
	return count, nil
}

func (r *stubNotificationRepository) MarkRead(_ context.Context, recipientID, id uint) (*models.Notification, error) {
	for i := range r.notifications {
		n := &r.notifications[i]
		if n.ID == id && n.RecipientID == recipientID {
			if !n.IsRead {
				now := time.Now()
				n.IsRead = true
				n.ReadAt = &now
			}
			copied := *n
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *stubNotificationRepository) MarkAllRead(_ context.Context, recipientID uint) (int64, error) {
	var affected int64
	for i := range r.notifications {
		if r.notifications[i].RecipientID == recipientID && !r.notifications[i].IsRead {
			r.notifications[i].IsRead = true
			affected++
		}
	}
	return affected, nil
}

func (r *stubNotificationRepository) Dismiss(_ context.Context, recipientID, id uint) error {
	for i := range r.notifications {
		if r.notifications[i].ID == id && r.notifications[i].RecipientID == recipientID {
			r.notifications[i].Dismissed = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *stubNotificationRepository) Delete(_ context.Context, recipientID, id uint) error {
	for i := range r.notifications {
		if r.notifications[i].ID == id && r.notifications[i].RecipientID == recipientID {
			r.notifications = append(r.notifications[:i], r.notifications[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *stubNotificationRepository) ArchiveOlderThan(_ context.Context, recipientID uint, cutoff time.Time) (int64, error) {
	var affected int64
	for i := range r.notifications {
		n := &r.notifications[i]
		if n.RecipientID == recipientID && !n.Archived && n.CreatedAt.Before(cutoff) {
			n.Archived = true
			affected++
		}
	}
	return affected, nil
}

// stubUserRepository serves a fixed user directory
type stubUserRepository struct {
	users map[uint]models.User
}

func (r *stubUserRepository) GetUserByID(id uint) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, models.ErrNotFound
}

func (r *stubUserRepository) GetAllUserIDs() ([]uint, error) {
	var ids []uint
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *stubUserRepository) GetUserIDsByRole(role string) ([]uint, error) {
	var ids []uint
	for id, u := range r.users {
		if u.Role == role {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *stubUserRepository) GetCommunityIDs(userID uint) ([]uint, error) {
	return nil, nil
}

type handlerFixture struct {
	echo    *echo.Echo
	repo    *stubNotificationRepository
	handler *NotificationHandler
}

func newHandlerFixture() *handlerFixture {
	e := echo.New()
	e.Validator = validators.NewValidator()

	repo := newStubNotificationRepository()
	users := &stubUserRepository{users: map[uint]models.User{
		1: {ID: 1, Name: "Asha", Role: models.RoleStudent},
		2: {ID: 2, Name: "Ravi", Role: models.RoleStudent, Avatar: "https://cdn/ravi.png"},
		9: {ID: 9, Name: "Dean", Role: models.RoleAdmin},
	}}
	svc := services.NewNotificationService(repo, users, nil, nil)
	return &handlerFixture{
		echo:    e,
		repo:    repo,
		handler: NewNotificationHandler(svc, users),
	}
}

func (f *handlerFixture) request(method, target, body string, claims *models.JwtCustomClaims) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func studentClaims(id uint) *models.JwtCustomClaims {
	return &models.JwtCustomClaims{UserID: id, Role: models.RoleStudent}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not json: %v", err)
	}
	if envelope["success"] != true {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
	return envelope
}

func TestGetNotificationsRequiresAuth(t *testing.T) {
	f := newHandlerFixture()
	c, _ := f.request(http.MethodGet, "/api/v1/notifications", "", nil)

	err := f.handler.GetNotifications(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestGetNotificationsEnrichesActor(t *testing.T) {
	f := newHandlerFixture()
	actor := uint(2)
	f.repo.notifications = []models.Notification{
		{ID: 1, RecipientID: 1, ActorID: &actor, Type: models.NotificationTypeLike, Title: "New like", CreatedAt: time.Now()},
	}
	f.repo.nextID = 2

	c, rec := f.request(http.MethodGet, "/api/v1/notifications", "", studentClaims(1))
	if err := f.handler.GetNotifications(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	if data["unreadCount"].(float64) != 1 {
		t.Errorf("unreadCount = %v, want 1", data["unreadCount"])
	}
	items := data["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0].(map[string]interface{})
	actorBlock, ok := item["actor"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected actor block, got %v", item)
	}
	if actorBlock["name"] != "Ravi" {
		t.Errorf("actor name = %v, want Ravi", actorBlock["name"])
	}
}

func TestGetUnreadCount(t *testing.T) {
	f := newHandlerFixture()
	f.repo.notifications = []models.Notification{
		{ID: 1, RecipientID: 1},
		{ID: 2, RecipientID: 1, IsRead: true},
		{ID: 3, RecipientID: 2},
	}

	c, rec := f.request(http.MethodGet, "/api/v1/notifications/unread-count", "", studentClaims(1))
	if err := f.handler.GetUnreadCount(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	if data["unreadCount"].(float64) != 1 {
		t.Errorf("unreadCount = %v, want 1", data["unreadCount"])
	}
}

func TestMarkAsReadInvalidID(t *testing.T) {
	f := newHandlerFixture()
	c, _ := f.request(http.MethodPost, "/api/v1/notifications/abc/read", "", studentClaims(1))
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := f.handler.MarkAsRead(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestMarkAsReadForeignRecordLooksMissing(t *testing.T) {
	f := newHandlerFixture()
	f.repo.notifications = []models.Notification{{ID: 1, RecipientID: 2}}

	c, _ := f.request(http.MethodPost, "/api/v1/notifications/1/read", "", studentClaims(1))
	c.SetParamNames("id")
	c.SetParamValues("1")

	err := f.handler.MarkAsRead(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign record, got %v", err)
	}
	if httpErr.Message != "Resource not found" {
		t.Errorf("message = %v, must not reveal ownership", httpErr.Message)
	}
}

func TestMarkAllAsRead(t *testing.T) {
	f := newHandlerFixture()
	f.repo.notifications = []models.Notification{
		{ID: 1, RecipientID: 1},
		{ID: 2, RecipientID: 1},
	}

	c, rec := f.request(http.MethodPost, "/api/v1/notifications/read-all", "", studentClaims(1))
	if err := f.handler.MarkAllAsRead(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	if data["modified"].(float64) != 2 {
		t.Errorf("modified = %v, want 2", data["modified"])
	}
}

func TestDeleteNotification(t *testing.T) {
	f := newHandlerFixture()
	f.repo.notifications = []models.Notification{{ID: 1, RecipientID: 1}}

	c, rec := f.request(http.MethodDelete, "/api/v1/notifications/1", "", studentClaims(1))
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := f.handler.DeleteNotification(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decodeEnvelope(t, rec)

	// repeat delete must 404
	c, _ = f.request(http.MethodDelete, "/api/v1/notifications/1", "", studentClaims(1))
	c.SetParamNames("id")
	c.SetParamValues("1")
	err := f.handler.DeleteNotification(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %v", err)
	}
}

func TestArchiveDefaultsToThirtyDays(t *testing.T) {
	f := newHandlerFixture()
	f.repo.notifications = []models.Notification{
		{ID: 1, RecipientID: 1, CreatedAt: time.Now().AddDate(0, 0, -40)},
		{ID: 2, RecipientID: 1, CreatedAt: time.Now().AddDate(0, 0, -10)},
	}

	c, rec := f.request(http.MethodPost, "/api/v1/notifications/archive", "", studentClaims(1))
	if err := f.handler.Archive(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	if data["archived"].(float64) != 1 {
		t.Errorf("archived = %v, want 1", data["archived"])
	}
}

func TestBroadcastRequiresAdmin(t *testing.T) {
	f := newHandlerFixture()
	c, _ := f.request(http.MethodPost, "/api/v1/admin/broadcast", `{"title":"Notice"}`, studentClaims(1))

	err := f.handler.Broadcast(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %v", err)
	}
}

func TestBroadcastValidatesBody(t *testing.T) {
	f := newHandlerFixture()
	claims := &models.JwtCustomClaims{UserID: 9, Role: models.RoleAdmin}
	c, _ := f.request(http.MethodPost, "/api/v1/admin/broadcast", `{"message":"no title"}`, claims)

	err := f.handler.Broadcast(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %v", err)
	}
}

func TestBroadcastCreatesForRole(t *testing.T) {
	f := newHandlerFixture()
	claims := &models.JwtCustomClaims{UserID: 9, Role: models.RoleAdmin}
	body := `{"title":"Convocation","message":"Hall A at 10am","role":"student"}`
	c, rec := f.request(http.MethodPost, "/api/v1/admin/broadcast", body, claims)

	if err := f.handler.Broadcast(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	envelope := decodeEnvelope(t, rec)
	data := envelope["data"].(map[string]interface{})
	if data["created"].(float64) != 2 {
		t.Errorf("created = %v, want 2 (the two students)", data["created"])
	}
	for _, n := range f.repo.notifications {
		if n.Priority != models.PriorityHigh || n.Type != models.NotificationTypeAdmin {
			t.Errorf("broadcast row has type %q priority %q", n.Type, n.Priority)
		}
	}
}
