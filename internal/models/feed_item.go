package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feed item types
const (
	FeedTypeUser      = "USER"
	FeedTypeCommunity = "COMMUNITY"
	FeedTypeMentor    = "MENTOR"
	FeedTypeAdmin     = "ADMIN"
	FeedTypeJobCard   = "JOB_CARD"
	FeedTypeEventCard = "EVENT_CARD"
)

// Visibility modes
const (
	VisibilityFollowers = "FOLLOWERS"
	VisibilityCommunity = "COMMUNITY"
	VisibilityPublic    = "PUBLIC"
)

// Media is an uploaded attachment reference. PublicID is the provider-assigned
// id used for cleanup after a post is removed.
type Media struct {
	Type     string `json:"type" bson:"type"` // image or video
	URL      string `json:"url" bson:"url"`
	PublicID string `json:"public_id,omitempty" bson:"public_id,omitempty"`
}

// FeedComment is a comment embedded in a feed item
type FeedComment struct {
	AuthorID  uint      `json:"author_id" bson:"author_id"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// FeedItem represents a post stored in MongoDB. Deletion is always soft:
// is_deleted filters the item out of every query but the document stays.
type FeedItem struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AuthorID    uint               `json:"author_id" bson:"author_id"`
	Type        string             `json:"type" bson:"type"`
	Text        string             `json:"text,omitempty" bson:"text,omitempty"`
	Media       []Media            `json:"media" bson:"media"`
	CommunityID uint               `json:"community_id,omitempty" bson:"community_id,omitempty"`
	RefID       string             `json:"ref_id,omitempty" bson:"ref_id,omitempty"`
	Visibility  string             `json:"visibility" bson:"visibility"`
	Likes       []uint             `json:"likes" bson:"likes"`
	Comments    []FeedComment      `json:"comments" bson:"comments"`
	IsPinned    bool               `json:"is_pinned" bson:"is_pinned"`
	IsDeleted   bool               `json:"-" bson:"is_deleted"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// CreatePostRequest defines the request body for creating a feed item
type CreatePostRequest struct {
	Text        string  `json:"text,omitempty" validate:"omitempty,max=5000"`
	Media       []Media `json:"media,omitempty" validate:"omitempty,max=6,dive"`
	Type        string  `json:"type,omitempty" validate:"omitempty,oneof=USER COMMUNITY MENTOR ADMIN JOB_CARD EVENT_CARD"`
	Visibility  string  `json:"visibility,omitempty" validate:"omitempty,oneof=FOLLOWERS COMMUNITY PUBLIC"`
	CommunityID uint    `json:"community_id,omitempty"`
	RefID       string  `json:"ref_id,omitempty" validate:"omitempty,max=100"`
}

// UpdatePostRequest defines the request body for editing a feed item
type UpdatePostRequest struct {
	Text       string `json:"text,omitempty" validate:"omitempty,max=5000"`
	Visibility string `json:"visibility,omitempty" validate:"omitempty,oneof=FOLLOWERS COMMUNITY PUBLIC"`
}

// AddCommentRequest defines the request body for commenting on a feed item
type AddCommentRequest struct {
	Text string `json:"text" validate:"required,min=1,max=1000"`
}
