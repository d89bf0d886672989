package notify

// Notification is one record produced into the delivery sink. A separate
// subsystem consumes and displays these; this service only appends.
type Notification struct {
	NotificationID     string `gorm:"column:notification_id;primaryKey;size:190;not null"`
	UserID             string `gorm:"column:user_id;size:190;not null;index:idx_notifications_user_time,priority:1"`
	GroupID            string `gorm:"column:group_id;size:190;not null"`
	Period             string `gorm:"column:period;size:16;not null"`
	PeriodStartSeconds int64  `gorm:"column:period_start_s;not null"`
	Rank               int    `gorm:"column:rank;not null"`
	Message            string `gorm:"column:message;type:text;not null"`
	CreatedAtSeconds   int64  `gorm:"column:created_at_s;not null;index:idx_notifications_user_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}
