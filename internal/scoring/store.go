package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TerraFitLab/terrafit/backend/internal/community"
)

// SnapshotStore persists leaderboard entries idempotently: one row per
// (group, user, period, period start), created on first sight and
// overwritten on every subsequent pass covering the same period start.
type SnapshotStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// SnapshotStoreConfig describes the dependencies for the snapshot store.
type SnapshotStoreConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// NewSnapshotStore constructs a SnapshotStore.
func NewSnapshotStore(cfg SnapshotStoreConfig) (*SnapshotStore, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("scoring: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{db: cfg.Database, logger: logger}, nil
}

var entryConflictTarget = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "group_id"},
		{Name: "user_id"},
		{Name: "period"},
		{Name: "period_start_s"},
	},
	DoUpdates: clause.AssignmentColumns([]string{
		"period_end_s",
		"activity_score",
		"weight_loss_score",
		"streak_score",
		"total_score",
		"rank",
		"updated_at",
	}),
}

// UpsertEntries writes one ranked batch. A failing entry is retried once
// and then counted as failed without aborting the remainder of the batch.
// It returns the number of rows written and the number that failed.
func (s *SnapshotStore) UpsertEntries(ctx context.Context, entries []LeaderboardEntry) (updated int, failed int) {
	for _, entry := range entries {
		if err := s.upsertWithRetry(ctx, entry); err != nil {
			failed++
			s.logger.Error("leaderboard entry upsert failed",
				zap.String("group_id", entry.GroupID),
				zap.String("user_id", entry.UserID),
				zap.String("period", entry.Period.String()),
				zap.Int64("period_start_s", entry.PeriodStartSeconds),
				zap.Error(err))
			continue
		}
		updated++
	}
	return updated, failed
}

func (s *SnapshotStore) upsertWithRetry(ctx context.Context, entry LeaderboardEntry) error {
	err := s.upsert(ctx, entry)
	if err == nil {
		return nil
	}
	// One retry covers transient write conflicts from an overlapping pass.
	if retryErr := s.upsert(ctx, entry); retryErr == nil {
		return nil
	}
	return err
}

func (s *SnapshotStore) upsert(ctx context.Context, entry LeaderboardEntry) error {
	row := entry
	row.CreatedAt = time.Time{}
	row.UpdatedAt = time.Time{}
	return s.db.WithContext(ctx).Clauses(entryConflictTarget).Create(&row).Error
}

// Leaderboard returns the ranked entries for a group's current window of
// the given period kind, ordered by rank.
func (s *SnapshotStore) Leaderboard(ctx context.Context, groupID community.GroupID, period Period, periodStart time.Time) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND period = ? AND period_start_s = ?",
			groupID.String(), period, periodStart.UTC().Unix()).
		Order("rank ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
