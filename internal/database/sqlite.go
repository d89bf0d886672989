package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TerraFitLab/terrafit/backend/internal/activity"
	"github.com/TerraFitLab/terrafit/backend/internal/community"
	"github.com/TerraFitLab/terrafit/backend/internal/notify"
	"github.com/TerraFitLab/terrafit/backend/internal/scoring"
	"github.com/TerraFitLab/terrafit/backend/internal/stats"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&community.Group{},
		&community.Membership{},
		&activity.Post{},
		&activity.Comment{},
		&activity.Reaction{},
		&activity.ChatMessage{},
		&activity.WeightEntry{},
		&scoring.LeaderboardEntry{},
		&stats.GroupStats{},
		&stats.GroupStatsHistory{},
		&notify.Notification{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
