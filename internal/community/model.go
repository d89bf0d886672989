package community

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// GroupStatus enumerates the moderation states a group can hold.
type GroupStatus string

const (
	// GroupStatusPending marks a group awaiting moderator approval.
	GroupStatusPending GroupStatus = "pending"
	// GroupStatusApproved marks a group eligible for leaderboard computation.
	GroupStatusApproved GroupStatus = "approved"
	// GroupStatusSuspended marks a group excluded from all processing.
	GroupStatusSuspended GroupStatus = "suspended"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidGroupID indicates that a group identifier is empty or exceeds storage bounds.
	ErrInvalidGroupID = errors.New("community: invalid group id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("community: invalid user id")
)

// GroupID represents a validated group identifier.
type GroupID string

// NewGroupID validates raw input and returns a GroupID.
func NewGroupID(rawInput string) (GroupID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidGroupID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidGroupID, maxIdentifierLength)
	}
	return GroupID(trimmed), nil
}

// String returns the underlying string identifier.
func (id GroupID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Group models a member community owned by the platform's CRUD layer.
// Only approved groups participate in leaderboard computation.
type Group struct {
	GroupID   string      `gorm:"column:group_id;primaryKey;size:190;not null"`
	Name      string      `gorm:"column:name;size:320;not null"`
	Status    GroupStatus `gorm:"column:status;size:32;not null;default:pending;index"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Group) TableName() string {
	return "groups"
}

// Membership captures a user's participation in a group. Joined-at never
// gates signal collection; it exists for display and retention analytics.
type Membership struct {
	GroupID             string `gorm:"column:group_id;primaryKey;size:190;not null"`
	UserID              string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Role                string `gorm:"column:role;size:32;not null;default:member"`
	JoinedAtSeconds     int64  `gorm:"column:joined_at_s;not null"`
	LastActiveAtSeconds int64  `gorm:"column:last_active_at_s;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (Membership) TableName() string {
	return "group_memberships"
}
