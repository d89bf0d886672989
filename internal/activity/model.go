package activity

// Raw activity events are owned by the platform's CRUD services; the
// engine only ever reads them. Column shapes mirror the write-side schema.

// Post is a group feed entry authored by a member.
type Post struct {
	PostID           string `gorm:"column:post_id;primaryKey;size:190;not null"`
	GroupID          string `gorm:"column:group_id;size:190;not null;index:idx_posts_group_time,priority:1"`
	UserID           string `gorm:"column:user_id;size:190;not null"`
	Body             string `gorm:"column:body;type:text;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_posts_group_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// Comment is a reply to a post within a group.
type Comment struct {
	CommentID        string `gorm:"column:comment_id;primaryKey;size:190;not null"`
	GroupID          string `gorm:"column:group_id;size:190;not null;index:idx_comments_group_time,priority:1"`
	UserID           string `gorm:"column:user_id;size:190;not null"`
	PostID           string `gorm:"column:post_id;size:190;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_comments_group_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// Reaction records a like given by a member inside a group.
type Reaction struct {
	ReactionID       string `gorm:"column:reaction_id;primaryKey;size:190;not null"`
	GroupID          string `gorm:"column:group_id;size:190;not null;index:idx_reactions_group_time,priority:1"`
	UserID           string `gorm:"column:user_id;size:190;not null"`
	TargetID         string `gorm:"column:target_id;size:190;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_reactions_group_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Reaction) TableName() string {
	return "reactions"
}

// ChatMessage is a message sent to a group chat channel.
type ChatMessage struct {
	MessageID        string `gorm:"column:message_id;primaryKey;size:190;not null"`
	GroupID          string `gorm:"column:group_id;size:190;not null;index:idx_messages_group_time,priority:1"`
	UserID           string `gorm:"column:user_id;size:190;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_messages_group_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// WeightEntry is a self-reported weight measurement. Entries belong to a
// user, not a group; the collector joins them through group membership.
type WeightEntry struct {
	EntryID           string  `gorm:"column:entry_id;primaryKey;size:190;not null"`
	UserID            string  `gorm:"column:user_id;size:190;not null;index:idx_weights_user_time,priority:1"`
	WeightKg          float64 `gorm:"column:weight_kg;not null"`
	MeasuredAtSeconds int64   `gorm:"column:measured_at_s;not null;index:idx_weights_user_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (WeightEntry) TableName() string {
	return "weight_entries"
}
