// Package services holds the business logic between handlers and
// repositories. The notification service owns the fan-out-on-create policy:
// persist first, then push to whatever live channels exist.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bcetconnect/backend/internal/metrics"
	"github.com/bcetconnect/backend/internal/models"
	"github.com/bcetconnect/backend/internal/realtime"
	"github.com/bcetconnect/backend/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Publisher pushes events to live channels. *realtime.Registry satisfies it;
// tests inject fakes. A nil Publisher disables push entirely — creation must
// still succeed because durability never depends on live delivery.
type Publisher interface {
	PushToUser(userID uint, event realtime.Event) int
	PushToRole(role string, event realtime.Event) int
}

// CreateNotificationInput carries the fields for a new notification. Data is
// an opaque bag; interpretation belongs to the producer/consumer pair.
type CreateNotificationInput struct {
	RecipientID uint
	ActorID     *uint
	Type        string
	Title       string
	Message     string
	RedirectURL string
	Data        map[string]interface{}
	Priority    string
}

// ListOptions controls notification pagination
type ListOptions struct {
	Page       int
	Limit      int
	OnlyUnread bool
}

// NotificationList is a page of notifications plus counts
type NotificationList struct {
	Items       []models.Notification `json:"items"`
	Total       int64                 `json:"total"`
	Page        int                   `json:"page"`
	Limit       int                   `json:"limit"`
	UnreadCount int64                 `json:"unreadCount"`
}

// NotificationService creates, lists and transitions notifications and pushes
// copies to live channels
type NotificationService struct {
	repo      repositories.NotificationRepository
	users     repositories.UserRepository
	publisher Publisher
	recorder  metrics.Recorder
}

// NewNotificationService creates a NotificationService. publisher may be nil.
func NewNotificationService(repo repositories.NotificationRepository, users repositories.UserRepository, publisher Publisher, recorder metrics.Recorder) *NotificationService {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &NotificationService{
		repo:      repo,
		users:     users,
		publisher: publisher,
		recorder:  recorder,
	}
}

// Create persists a notification and then pushes it to the recipient's live
// channels. Push failures are logged, never surfaced: the record is retrievable
// via List regardless of delivery.
func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	if in.RecipientID == 0 {
		return nil, fmt.Errorf("%w: recipient id is required", models.ErrInvalidArgument)
	}
	if in.Type == "" {
		in.Type = models.NotificationTypeGeneric
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}

	n := &models.Notification{
		RecipientID: in.RecipientID,
		ActorID:     in.ActorID,
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
		RedirectURL: in.RedirectURL,
		Priority:    in.Priority,
	}
	if len(in.Data) > 0 {
		raw, err := json.Marshal(in.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: data is not serializable", models.ErrInvalidArgument)
		}
		n.Data = raw
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.recorder.NotificationCreated(n.Type)

	s.push(in.RecipientID, realtime.Event{Name: realtime.EventNotificationNew, Data: n})
	return n, nil
}

// push is the single best-effort delivery point. A nil publisher means the
// transport is not up yet; that is not the caller's problem.
func (s *NotificationService) push(userID uint, event realtime.Event) {
	if s.publisher == nil {
		slog.Debug("push skipped, no publisher configured",
			slog.String("event", event.Name),
			slog.String("module", "notifications"),
		)
		return
	}
	reached := s.publisher.PushToUser(userID, event)
	s.recorder.PushDelivered(event.Name, reached)
}

// NotifyNewPost tells a follower that someone they follow posted
func (s *NotificationService) NotifyNewPost(ctx context.Context, recipientID, actorID uint, postID string) error {
	_, err := s.Create(ctx, CreateNotificationInput{
		RecipientID: recipientID,
		ActorID:     &actorID,
		Type:        models.NotificationTypePost,
		Title:       "New post",
		Message:     "Someone you follow shared a new post",
		RedirectURL: "/feed/" + postID,
	})
	return err
}

// NotifyLike tells an author their post was liked
func (s *NotificationService) NotifyLike(ctx context.Context, recipientID, actorID uint, postID string) error {
	_, err := s.Create(ctx, CreateNotificationInput{
		RecipientID: recipientID,
		ActorID:     &actorID,
		Type:        models.NotificationTypeLike,
		Title:       "New like",
		Message:     "Someone liked your post",
		RedirectURL: "/feed/" + postID,
	})
	return err
}

// NotifyComment tells an author their post received a comment
func (s *NotificationService) NotifyComment(ctx context.Context, recipientID, actorID uint, postID string) error {
	_, err := s.Create(ctx, CreateNotificationInput{
		RecipientID: recipientID,
		ActorID:     &actorID,
		Type:        models.NotificationTypeComment,
		Title:       "New comment",
		Message:     "Someone commented on your post",
		RedirectURL: "/feed/" + postID,
	})
	return err
}

// NotifyFollow tells a user they gained a follower
func (s *NotificationService) NotifyFollow(ctx context.Context, recipientID, actorID uint) error {
	_, err := s.Create(ctx, CreateNotificationInput{
		RecipientID: recipientID,
		ActorID:     &actorID,
		Type:        models.NotificationTypeFollow,
		Title:       "New follower",
		Message:     "Someone started following you",
	})
	return err
}

// Broadcast creates a high-priority admin announcement for every recipient in
// the role (or everyone when role is empty) and returns the number created.
// Individual failures are logged and skipped so one bad row cannot stall the
// whole announcement.
func (s *NotificationService) Broadcast(ctx context.Context, actorID uint, req models.BroadcastRequest) (int, error) {
	var (
		recipients []uint
		err        error
	)
	if req.Role != "" {
		recipients, err = s.users.GetUserIDsByRole(req.Role)
	} else {
		recipients, err = s.users.GetAllUserIDs()
	}
	if err != nil {
		return 0, err
	}

	created := 0
	for _, recipientID := range recipients {
		_, err := s.Create(ctx, CreateNotificationInput{
			RecipientID: recipientID,
			ActorID:     &actorID,
			Type:        models.NotificationTypeAdmin,
			Title:       req.Title,
			Message:     req.Message,
			RedirectURL: req.RedirectURL,
			Priority:    models.PriorityHigh,
		})
		if err != nil {
			slog.Error("broadcast notification failed",
				slog.Uint64("recipient", uint64(recipientID)),
				slog.String("error", err.Error()),
				slog.String("module", "notifications"),
			)
			continue
		}
		created++
	}
	return created, nil
}

// List returns a page of the user's non-archived notifications, newest first
func (s *NotificationService) List(ctx context.Context, userID uint, opts ListOptions) (*NotificationList, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = defaultPageSize
	}
	if opts.Limit > maxPageSize {
		opts.Limit = maxPageSize
	}

	items, total, err := s.repo.ListByRecipient(ctx, userID, opts.Page, opts.Limit, opts.OnlyUnread)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationList{
		Items:       items,
		Total:       total,
		Page:        opts.Page,
		Limit:       opts.Limit,
		UnreadCount: unread,
	}, nil
}

// UnreadCount returns the user's unread, non-archived notification count
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead transitions one owned record to read and pushes a read event
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error) {
	n, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.push(userID, realtime.Event{
		Name: realtime.EventNotificationRead,
		Data: map[string]interface{}{"id": n.ID},
	})
	return n, nil
}

// MarkAllRead transitions all unread records for the user and returns the count
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	affected, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.push(userID, realtime.Event{Name: realtime.EventAllRead})
	return affected, nil
}

// Dismiss soft-dismisses one owned record
func (s *NotificationService) Dismiss(ctx context.Context, userID, id uint) error {
	return s.repo.Dismiss(ctx, userID, id)
}

// Delete hard-deletes one owned record
func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	return s.repo.Delete(ctx, userID, id)
}

// ArchiveOlderThan archives the user's records older than the cutoff
func (s *NotificationService) ArchiveOlderThan(ctx context.Context, userID uint, cutoff time.Time) (int64, error) {
	return s.repo.ArchiveOlderThan(ctx, userID, cutoff)
}
