package stats

// GroupStats is the single current aggregate row per group. It is always
// overwritten, never versioned history; the Version column exists only to
// make concurrent writers detect each other (compare-and-swap).
type GroupStats struct {
	GroupID               string  `gorm:"column:group_id;primaryKey;size:190;not null"`
	TotalMembers          int64   `gorm:"column:total_members;not null;default:0"`
	ActiveMembers         int64   `gorm:"column:active_members;not null;default:0"`
	TotalWeightLossKg     float64 `gorm:"column:total_weight_loss_kg;not null;default:0"`
	AvgWeightLossKg       float64 `gorm:"column:avg_weight_loss_kg;not null;default:0"`
	TotalPosts            int64   `gorm:"column:total_posts;not null;default:0"`
	TotalMessages         int64   `gorm:"column:total_messages;not null;default:0"`
	ActiveRate            float64 `gorm:"column:active_rate;not null;default:0"`
	LastCalculatedSeconds int64   `gorm:"column:last_calculated_s;not null"`
	Version               int64   `gorm:"column:version;not null;default:1"`
}

// TableName provides the explicit table binding for GORM.
func (GroupStats) TableName() string {
	return "group_stats"
}

// GroupStatsHistory is the daily snapshot of a group's aggregates, one row
// per group per UTC calendar day, upserted if recomputed the same day.
type GroupStatsHistory struct {
	GroupID           string  `gorm:"column:group_id;primaryKey;size:190;not null"`
	StatDate          string  `gorm:"column:stat_date;primaryKey;size:10;not null"`
	TotalMembers      int64   `gorm:"column:total_members;not null;default:0"`
	ActiveMembers     int64   `gorm:"column:active_members;not null;default:0"`
	TotalWeightLossKg float64 `gorm:"column:total_weight_loss_kg;not null;default:0"`
	AvgWeightLossKg   float64 `gorm:"column:avg_weight_loss_kg;not null;default:0"`
	TotalPosts        int64   `gorm:"column:total_posts;not null;default:0"`
	TotalMessages     int64   `gorm:"column:total_messages;not null;default:0"`
	ActiveRate        float64 `gorm:"column:active_rate;not null;default:0"`
	RecordedAtSeconds int64   `gorm:"column:recorded_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (GroupStatsHistory) TableName() string {
	return "group_stats_history"
}
