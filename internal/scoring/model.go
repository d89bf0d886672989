package scoring

import "time"

// LeaderboardEntry is one persisted snapshot row: a member's scores and
// rank for a group, period kind, and period start. Rows are permanent
// history; re-runs for the same key overwrite scores and rank in place.
type LeaderboardEntry struct {
	GroupID            string    `gorm:"column:group_id;primaryKey;size:190;not null"`
	UserID             string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Period             Period    `gorm:"column:period;primaryKey;size:16;not null"`
	PeriodStartSeconds int64     `gorm:"column:period_start_s;primaryKey;not null"`
	PeriodEndSeconds   int64     `gorm:"column:period_end_s;not null"`
	ActivityScore      float64   `gorm:"column:activity_score;not null;default:0"`
	WeightLossScore    float64   `gorm:"column:weight_loss_score;not null;default:0"`
	StreakScore        float64   `gorm:"column:streak_score;not null;default:0"`
	TotalScore         float64   `gorm:"column:total_score;not null;default:0"`
	Rank               int       `gorm:"column:rank;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}
