package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TerraFitLab/terrafit/backend/internal/activity"
	"github.com/TerraFitLab/terrafit/backend/internal/community"
)

const defaultCacheTTL = 10 * time.Minute

var (
	// ErrUnknownGroup indicates the group has no row in the store.
	ErrUnknownGroup = errors.New("stats: unknown group")
	// ErrStatsConflict indicates the versioned row kept moving underneath
	// both write attempts.
	ErrStatsConflict = errors.New("stats: concurrent stats update conflict")
)

// Service computes and caches group-level aggregate statistics. Reads are
// served through an in-memory TTL cache; cache misses for the same group
// are coalesced so the underlying aggregation runs once. Invalidation is
// driven by external write-side collaborators, never by the engine.
type Service struct {
	db        *gorm.DB
	community *community.Service
	clock     func() time.Time
	logger    *zap.Logger
	ttl       time.Duration

	mu       sync.RWMutex
	cache    map[string]cacheEntry
	inFlight singleflight.Group
}

type cacheEntry struct {
	stats     GroupStats
	expiresAt time.Time
}

// ServiceConfig describes the dependencies for the statistics service.
type ServiceConfig struct {
	Database  *gorm.DB
	Community *community.Service
	Clock     func() time.Time
	Logger    *zap.Logger
	CacheTTL  time.Duration
}

// NewService constructs the statistics service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("stats: database connection required")
	}
	if cfg.Community == nil {
		return nil, fmt.Errorf("stats: community service required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		db:        cfg.Database,
		community: cfg.Community,
		clock:     clock,
		logger:    logger,
		ttl:       ttl,
		cache:     make(map[string]cacheEntry),
	}, nil
}

// GroupStats returns the cached aggregate snapshot for a group, computing
// and persisting a fresh one on a miss or after expiry. Within the TTL the
// cached value is returned even if the underlying signals have changed.
func (s *Service) GroupStats(ctx context.Context, groupID community.GroupID) (GroupStats, error) {
	key := groupID.String()
	now := s.clock().UTC()

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.stats, nil
	}

	value, err, _ := s.inFlight.Do(key, func() (interface{}, error) {
		fresh, err := s.Calculate(ctx, groupID)
		if err != nil {
			return GroupStats{}, err
		}
		if err := s.persist(ctx, fresh); err != nil {
			return GroupStats{}, err
		}
		s.mu.Lock()
		s.cache[key] = cacheEntry{stats: fresh, expiresAt: s.clock().UTC().Add(s.ttl)}
		s.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return GroupStats{}, err
	}
	return value.(GroupStats), nil
}

// Invalidate drops the cached snapshot for a group so the next read
// recomputes from raw signals. Write-side collaborators call this on
// membership changes, new posts, and new measurements.
func (s *Service) Invalidate(groupID community.GroupID) {
	s.mu.Lock()
	delete(s.cache, groupID.String())
	s.mu.Unlock()
}

// Calculate aggregates group statistics directly from the raw models,
// bypassing the cache. Weight loss per member compares their earliest and
// latest recorded measurements; only positive losses contribute.
func (s *Service) Calculate(ctx context.Context, groupID community.GroupID) (GroupStats, error) {
	exists, err := s.community.GroupExists(ctx, groupID)
	if err != nil {
		return GroupStats{}, err
	}
	if !exists {
		return GroupStats{}, fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
	}

	totalMembers, err := s.community.CountMembers(ctx, groupID)
	if err != nil {
		return GroupStats{}, err
	}
	activeMembers, err := s.community.CountActiveMembers(ctx, groupID)
	if err != nil {
		return GroupStats{}, err
	}

	var totalPosts int64
	if err := s.db.WithContext(ctx).Model(&activity.Post{}).
		Where("group_id = ?", groupID.String()).
		Count(&totalPosts).Error; err != nil {
		return GroupStats{}, err
	}
	var totalMessages int64
	if err := s.db.WithContext(ctx).Model(&activity.ChatMessage{}).
		Where("group_id = ?", groupID.String()).
		Count(&totalMessages).Error; err != nil {
		return GroupStats{}, err
	}

	totalLoss, losers, err := s.aggregateWeightLoss(ctx, groupID)
	if err != nil {
		return GroupStats{}, err
	}
	avgLoss := 0.0
	if losers > 0 {
		avgLoss = totalLoss / float64(losers)
	}

	activeRate := 0.0
	if totalMembers > 0 {
		activeRate = float64(activeMembers) / float64(totalMembers)
	}

	return GroupStats{
		GroupID:               groupID.String(),
		TotalMembers:          totalMembers,
		ActiveMembers:         activeMembers,
		TotalWeightLossKg:     totalLoss,
		AvgWeightLossKg:       avgLoss,
		TotalPosts:            totalPosts,
		TotalMessages:         totalMessages,
		ActiveRate:            activeRate,
		LastCalculatedSeconds: s.clock().UTC().Unix(),
	}, nil
}

func (s *Service) aggregateWeightLoss(ctx context.Context, groupID community.GroupID) (float64, int64, error) {
	memberIDs, err := s.community.ListMemberIDs(ctx, groupID)
	if err != nil {
		return 0, 0, err
	}
	if len(memberIDs) == 0 {
		return 0, 0, nil
	}
	ids := make([]string, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		ids = append(ids, memberID.String())
	}

	var entries []activity.WeightEntry
	if err := s.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Order("user_id ASC, measured_at_s ASC").
		Find(&entries).Error; err != nil {
		return 0, 0, err
	}

	type boundary struct {
		first   float64
		last    float64
		samples int
	}
	boundaries := make(map[string]*boundary)
	for _, entry := range entries {
		b := boundaries[entry.UserID]
		if b == nil {
			b = &boundary{first: entry.WeightKg}
			boundaries[entry.UserID] = b
		}
		b.last = entry.WeightKg
		b.samples++
	}

	total := 0.0
	var losers int64
	for _, b := range boundaries {
		if b.samples < 2 {
			continue
		}
		if loss := b.first - b.last; loss > 0 {
			total += loss
			losers++
		}
	}
	return total, losers, nil
}

// persist writes the current row through a compare-and-swap on the version
// column, retrying once when a concurrent writer wins the race, and upserts
// the daily history snapshot.
func (s *Service) persist(ctx context.Context, fresh GroupStats) error {
	for attempt := 0; attempt < 2; attempt++ {
		var current GroupStats
		err := s.db.WithContext(ctx).
			Where("group_id = ?", fresh.GroupID).
			Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fresh.Version = 1
			createErr := s.db.WithContext(ctx).Create(&fresh).Error
			if createErr == nil {
				return s.upsertHistory(ctx, fresh)
			}
			// Another writer created the row first; fall through to CAS.
			continue
		}
		if err != nil {
			return err
		}

		result := s.db.WithContext(ctx).
			Model(&GroupStats{}).
			Where("group_id = ? AND version = ?", fresh.GroupID, current.Version).
			Updates(map[string]interface{}{
				"total_members":        fresh.TotalMembers,
				"active_members":       fresh.ActiveMembers,
				"total_weight_loss_kg": fresh.TotalWeightLossKg,
				"avg_weight_loss_kg":   fresh.AvgWeightLossKg,
				"total_posts":          fresh.TotalPosts,
				"total_messages":       fresh.TotalMessages,
				"active_rate":          fresh.ActiveRate,
				"last_calculated_s":    fresh.LastCalculatedSeconds,
				"version":              current.Version + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return s.upsertHistory(ctx, fresh)
		}
		s.logger.Warn("group stats version moved, retrying",
			zap.String("group_id", fresh.GroupID),
			zap.Int64("version", current.Version))
	}
	return fmt.Errorf("%w: %s", ErrStatsConflict, fresh.GroupID)
}

func (s *Service) upsertHistory(ctx context.Context, fresh GroupStats) error {
	recordedAt := s.clock().UTC()
	row := GroupStatsHistory{
		GroupID:           fresh.GroupID,
		StatDate:          recordedAt.Format("2006-01-02"),
		TotalMembers:      fresh.TotalMembers,
		ActiveMembers:     fresh.ActiveMembers,
		TotalWeightLossKg: fresh.TotalWeightLossKg,
		AvgWeightLossKg:   fresh.AvgWeightLossKg,
		TotalPosts:        fresh.TotalPosts,
		TotalMessages:     fresh.TotalMessages,
		ActiveRate:        fresh.ActiveRate,
		RecordedAtSeconds: recordedAt.Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "group_id"}, {Name: "stat_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_members",
			"active_members",
			"total_weight_loss_kg",
			"avg_weight_loss_kg",
			"total_posts",
			"total_messages",
			"active_rate",
			"recorded_at_s",
		}),
	}).Create(&row).Error
}
