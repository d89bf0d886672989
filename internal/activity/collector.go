package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TerraFitLab/terrafit/backend/internal/community"
)

// WeightSample is one in-window measurement on a member's weight series.
type WeightSample struct {
	MeasuredAt time.Time
	WeightKg   float64
}

// Signals holds a member's raw in-window activity. WeightSeries is ordered
// ascending by measurement time.
type Signals struct {
	Posts        int
	Comments     int
	Likes        int
	Messages     int
	PostDays     int
	WeightSeries []WeightSample
}

// Collector gathers per-member activity signals for a group and window.
// A failing signal source degrades that signal to zero for every member of
// the group instead of aborting the group's pass.
type Collector struct {
	db     *gorm.DB
	logger *zap.Logger
}

// CollectorConfig describes the dependencies for signal collection.
type CollectorConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// NewCollector constructs a Collector.
func NewCollector(cfg CollectorConfig) (*Collector, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("activity: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{db: cfg.Database, logger: logger}, nil
}

type userCount struct {
	UserID string
	Total  int
}

// Collect returns the signal map for every listed member over [start, end].
// Members without any in-window activity are present with zeroed signals.
func (c *Collector) Collect(ctx context.Context, groupID community.GroupID, memberIDs []community.UserID, start, end time.Time) (map[community.UserID]Signals, error) {
	signals := make(map[community.UserID]Signals, len(memberIDs))
	for _, memberID := range memberIDs {
		signals[memberID] = Signals{}
	}
	if len(memberIDs) == 0 {
		return signals, nil
	}

	startSeconds := start.UTC().Unix()
	endSeconds := end.UTC().Unix()

	c.countBySource(ctx, groupID, startSeconds, endSeconds, &Comment{}, "comments", signals, func(sig *Signals, total int) {
		sig.Comments = total
	})
	c.countBySource(ctx, groupID, startSeconds, endSeconds, &Reaction{}, "likes", signals, func(sig *Signals, total int) {
		sig.Likes = total
	})
	c.countBySource(ctx, groupID, startSeconds, endSeconds, &ChatMessage{}, "messages", signals, func(sig *Signals, total int) {
		sig.Messages = total
	})
	c.collectPosts(ctx, groupID, startSeconds, endSeconds, signals)
	c.collectWeights(ctx, groupID, memberIDs, startSeconds, endSeconds, signals)

	return signals, nil
}

func (c *Collector) countBySource(ctx context.Context, groupID community.GroupID, startSeconds, endSeconds int64, model interface{}, sourceName string, signals map[community.UserID]Signals, assign func(*Signals, int)) {
	var rows []userCount
	err := c.db.WithContext(ctx).
		Model(model).
		Select("user_id, COUNT(*) AS total").
		Where("group_id = ? AND created_at_s BETWEEN ? AND ?", groupID.String(), startSeconds, endSeconds).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		c.logger.Warn("signal source unavailable, degrading to zero",
			zap.String("group_id", groupID.String()),
			zap.String("source", sourceName),
			zap.Error(err))
		return
	}
	for _, row := range rows {
		memberID := community.UserID(row.UserID)
		sig, ok := signals[memberID]
		if !ok {
			continue
		}
		assign(&sig, row.Total)
		signals[memberID] = sig
	}
}

// collectPosts loads raw post timestamps so both the in-window count and the
// number of distinct UTC posting days come from a single query.
func (c *Collector) collectPosts(ctx context.Context, groupID community.GroupID, startSeconds, endSeconds int64, signals map[community.UserID]Signals) {
	type postRow struct {
		UserID           string
		CreatedAtSeconds int64
	}
	var rows []postRow
	err := c.db.WithContext(ctx).
		Model(&Post{}).
		Select("user_id, created_at_s AS created_at_seconds").
		Where("group_id = ? AND created_at_s BETWEEN ? AND ?", groupID.String(), startSeconds, endSeconds).
		Scan(&rows).Error
	if err != nil {
		c.logger.Warn("signal source unavailable, degrading to zero",
			zap.String("group_id", groupID.String()),
			zap.String("source", "posts"),
			zap.Error(err))
		return
	}

	days := make(map[community.UserID]map[string]struct{})
	counts := make(map[community.UserID]int)
	for _, row := range rows {
		memberID := community.UserID(row.UserID)
		if _, ok := signals[memberID]; !ok {
			continue
		}
		counts[memberID]++
		dayKey := time.Unix(row.CreatedAtSeconds, 0).UTC().Format("2006-01-02")
		if days[memberID] == nil {
			days[memberID] = make(map[string]struct{})
		}
		days[memberID][dayKey] = struct{}{}
	}
	for memberID, total := range counts {
		sig := signals[memberID]
		sig.Posts = total
		sig.PostDays = len(days[memberID])
		signals[memberID] = sig
	}
}

func (c *Collector) collectWeights(ctx context.Context, groupID community.GroupID, memberIDs []community.UserID, startSeconds, endSeconds int64, signals map[community.UserID]Signals) {
	ids := make([]string, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		ids = append(ids, memberID.String())
	}

	var entries []WeightEntry
	err := c.db.WithContext(ctx).
		Where("user_id IN ? AND measured_at_s BETWEEN ? AND ?", ids, startSeconds, endSeconds).
		Order("measured_at_s ASC").
		Find(&entries).Error
	if err != nil {
		c.logger.Warn("signal source unavailable, degrading to zero",
			zap.String("group_id", groupID.String()),
			zap.String("source", "weights"),
			zap.Error(err))
		return
	}

	for _, entry := range entries {
		memberID := community.UserID(entry.UserID)
		sig, ok := signals[memberID]
		if !ok {
			continue
		}
		sig.WeightSeries = append(sig.WeightSeries, WeightSample{
			MeasuredAt: time.Unix(entry.MeasuredAtSeconds, 0).UTC(),
			WeightKg:   entry.WeightKg,
		})
		signals[memberID] = sig
	}

	for memberID, sig := range signals {
		series := sig.WeightSeries
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].MeasuredAt.Before(series[j].MeasuredAt)
		})
		sig.WeightSeries = series
		signals[memberID] = sig
	}
}
