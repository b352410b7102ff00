package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Campus roles. Admin accounts may broadcast and moderate the feed.
const (
	RoleStudent = "student"
	RoleAlumni  = "alumni"
	RoleFaculty = "faculty"
	RoleAdmin   = "admin"
)

// User represents a campus member (PostgreSQL)
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	Role      string    `json:"role" gorm:"size:20;default:student;index"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserCompact is the slimmed-down shape embedded in enriched responses
type UserCompact struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role"`
}

// ToCompact returns the compact representation of the user
func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:     u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
		Role:   u.Role,
	}
}

// Follow represents a follower/following relationship
type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  uint      `json:"follower_id" gorm:"index;uniqueIndex:idx_follower_following"`
	FollowingID uint      `json:"following_id" gorm:"index;uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommunityMembership links a user to a campus community. The feed visibility
// engine uses the membership set to resolve COMMUNITY-scoped posts.
type CommunityMembership struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"index;uniqueIndex:idx_user_community"`
	CommunityID uint      `json:"community_id" gorm:"index;uniqueIndex:idx_user_community"`
	CreatedAt   time.Time `json:"created_at"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
