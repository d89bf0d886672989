package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationClampNegativeWeightLoss = "2026-07-14_clamp_negative_weight_loss_scores"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationClampNegativeWeightLoss, apply: clampNegativeWeightLossScores},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// clampNegativeWeightLossScores repairs rows written before the non-negative
// weight-loss rule: the composite total is rebuilt without the negative
// contribution, then the sub-score itself is zeroed.
func clampNegativeWeightLossScores(db *gorm.DB) error {
	rebuildTotals := "UPDATE leaderboard_entries SET total_score = total_score - 0.5 * weight_loss_score WHERE weight_loss_score < 0;"
	if err := db.Exec(rebuildTotals).Error; err != nil {
		return err
	}
	zeroScores := "UPDATE leaderboard_entries SET weight_loss_score = 0 WHERE weight_loss_score < 0;"
	return db.Exec(zeroScores).Error
}
