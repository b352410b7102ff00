package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/bcetconnect/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification persistence.
// Every operation scoped by recipientID must behave identically for a missing
// record and a record owned by another user (models.ErrNotFound for both).
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID uint, page, limit int, onlyUnread bool) ([]models.Notification, int64, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, recipientID, id uint) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
	Dismiss(ctx context.Context, recipientID, id uint) error
	Delete(ctx context.Context, recipientID, id uint) error
	ArchiveOlderThan(ctx context.Context, recipientID uint, cutoff time.Time) (int64, error)
}

// PostgresNotificationRepository implements NotificationRepository for PostgreSQL
type PostgresNotificationRepository struct {
	db *gorm.DB
}

// NewPostgresNotificationRepository creates a new PostgresNotificationRepository
func NewPostgresNotificationRepository(db *gorm.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListByRecipient returns a page of non-archived notifications, newest first,
// plus the total matching count and the recipient's current unread count.
func (r *PostgresNotificationRepository) ListByRecipient(ctx context.Context, recipientID uint, page, limit int, onlyUnread bool) ([]models.Notification, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND archived = false", recipientID)
	if onlyUnread {
		q = q.Where("is_read = false")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	offset := (page - 1) * limit
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&notifications).Error
	return notifications, total, err
}

func (r *PostgresNotificationRepository) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = false AND archived = false", recipientID).
		Count(&count).Error
	return count, err
}

// MarkRead transitions a single owned record to read. Calling it again on an
// already-read record is a no-op that keeps the original read timestamp.
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, recipientID, id uint) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if n.IsRead {
		return &n, nil
	}

	now := time.Now()
	err = r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
	if err != nil {
		return nil, err
	}
	n.IsRead = true
	n.ReadAt = &now
	return &n, nil
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = false", recipientID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	return res.RowsAffected, res.Error
}

func (r *PostgresNotificationRepository) Dismiss(ctx context.Context, recipientID, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("dismissed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) Delete(ctx context.Context, recipientID, id uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ArchiveOlderThan flags matching records as archived; nothing is deleted.
func (r *PostgresNotificationRepository) ArchiveOlderThan(ctx context.Context, recipientID uint, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND archived = false AND created_at < ?", recipientID, cutoff).
		Update("archived", true)
	return res.RowsAffected, res.Error
}
