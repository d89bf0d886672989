package scoring

import (
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/TerraFitLab/terrafit/backend/internal/activity"
	"github.com/TerraFitLab/terrafit/backend/internal/community"
)

func newScoringTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:scoring_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&community.Group{},
		&community.Membership{},
		&activity.Post{},
		&activity.Comment{},
		&activity.Reaction{},
		&activity.ChatMessage{},
		&activity.WeightEntry{},
		&LeaderboardEntry{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("failed to seed %T: %v", value, err)
	}
}

// recordingNotifier captures notifier handoffs for assertions.
type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]LeaderboardEntry
}

func (n *recordingNotifier) NotifyTopPerformers(entries []LeaderboardEntry) {
	batch := make([]LeaderboardEntry, len(entries))
	copy(batch, entries)
	n.mu.Lock()
	n.batches = append(n.batches, batch)
	n.mu.Unlock()
}

func (n *recordingNotifier) batchCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.batches)
}

func mustGroupID(t *testing.T, value string) community.GroupID {
	t.Helper()
	id, err := community.NewGroupID(value)
	if err != nil {
		t.Fatalf("unexpected group id error: %v", err)
	}
	return id
}
