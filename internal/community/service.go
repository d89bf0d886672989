package community

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Service exposes read access to groups and memberships for the
// leaderboard engine and the statistics path.
type Service struct {
	db    *gorm.DB
	clock func() time.Time
}

// ServiceConfig describes the dependencies for the community reader.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// NewService constructs the community reader.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("community: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, clock: clock}, nil
}

// ListApprovedGroups returns every group eligible for leaderboard processing.
func (s *Service) ListApprovedGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := s.db.WithContext(ctx).
		Where("status = ?", GroupStatusApproved).
		Order("group_id ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// ListMemberIDs returns the user identifiers belonging to a group.
func (s *Service) ListMemberIDs(ctx context.Context, groupID GroupID) ([]UserID, error) {
	var raw []string
	if err := s.db.WithContext(ctx).
		Model(&Membership{}).
		Where("group_id = ?", groupID.String()).
		Order("user_id ASC").
		Pluck("user_id", &raw).Error; err != nil {
		return nil, err
	}
	ids := make([]UserID, 0, len(raw))
	for _, value := range raw {
		ids = append(ids, UserID(value))
	}
	return ids, nil
}

// GroupExists reports whether a group row is present, regardless of status.
func (s *Service) GroupExists(ctx context.Context, groupID GroupID) (bool, error) {
	var group Group
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID.String()).
		Take(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountMembers returns the total member count for a group.
func (s *Service) CountMembers(ctx context.Context, groupID GroupID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Membership{}).
		Where("group_id = ?", groupID.String()).
		Count(&count).Error
	return count, err
}

// CountActiveMembers returns members whose last activity falls within the
// trailing seven days, independent of any leaderboard period.
func (s *Service) CountActiveMembers(ctx context.Context, groupID GroupID) (int64, error) {
	cutoff := s.clock().UTC().AddDate(0, 0, -7).Unix()
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Membership{}).
		Where("group_id = ? AND last_active_at_s >= ?", groupID.String(), cutoff).
		Count(&count).Error
	return count, err
}
