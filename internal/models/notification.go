package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types. The type drives UI grouping and icons only; the server
// treats it as an opaque label beyond enum validation.
const (
	NotificationTypePost      = "post"
	NotificationTypeLike      = "like"
	NotificationTypeComment   = "comment"
	NotificationTypeFollow    = "follow"
	NotificationTypeAdmin     = "admin"
	NotificationTypeJob       = "job"
	NotificationTypeEvent     = "event"
	NotificationTypeCommunity = "community"
	NotificationTypeChat      = "chat"
	NotificationTypeSystem    = "system"
	NotificationTypeGeneric   = "generic"
)

// Notification priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Notification represents a durable user notification (PostgreSQL).
// Records are immutable except for the read/dismiss/archive transitions.
type Notification struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	RecipientID uint           `json:"recipient_id" gorm:"not null;index:idx_recipient_state"`
	ActorID     *uint          `json:"actor_id,omitempty" gorm:"index"`
	Type        string         `json:"type" gorm:"size:20;default:generic;index"`
	Title       string         `json:"title"`
	Message     string         `json:"message,omitempty"`
	RedirectURL string         `json:"redirect_url,omitempty"`
	Data        datatypes.JSON `json:"data,omitempty"`
	Priority    string         `json:"priority" gorm:"size:10;default:normal"`
	IsRead      bool           `json:"is_read" gorm:"default:false;index:idx_recipient_state"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	Dismissed   bool           `json:"dismissed" gorm:"default:false"`
	Archived    bool           `json:"archived" gorm:"default:false;index:idx_recipient_state"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
}

// BroadcastRequest is the admin announcement body
type BroadcastRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Message     string `json:"message,omitempty" validate:"omitempty,max=2000"`
	RedirectURL string `json:"redirect_url,omitempty" validate:"omitempty,max=500"`
	Role        string `json:"role,omitempty" validate:"omitempty,oneof=student alumni faculty admin"`
}
