package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TerraFitLab/terrafit/backend/internal/scoring"
)

const (
	topPerformerCutoff = 3
	dispatchBufferSize = 64
	retryBackoff       = 250 * time.Millisecond
	insertTimeout      = 5 * time.Second
)

// Notifier turns committed ranked batches into notification records for
// the delivery subsystem. Dispatch happens on a background worker after the
// snapshot write; a failed insert is retried once and then dropped with a
// log line. Nothing here can roll back or delay a committed ranking.
//
// Re-running a pass for an already-notified period produces fresh records;
// the sink carries no cross-run deduplication.
type Notifier struct {
	db     *gorm.DB
	ids    IDProvider
	clock  func() time.Time
	logger *zap.Logger

	jobs chan []scoring.LeaderboardEntry
	done chan struct{}
	once sync.Once
}

// NotifierConfig describes the dependencies for the notifier.
type NotifierConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// NewNotifier constructs the notifier and starts its dispatch worker.
func NewNotifier(cfg NotifierConfig) (*Notifier, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notify: database connection required")
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	notifier := &Notifier{
		db:     cfg.Database,
		ids:    ids,
		clock:  clock,
		logger: logger,
		jobs:   make(chan []scoring.LeaderboardEntry, dispatchBufferSize),
		done:   make(chan struct{}),
	}
	go notifier.dispatchLoop()
	return notifier, nil
}

// NotifyTopPerformers queues the ranks 1-3 of a committed batch for
// asynchronous dispatch. When the queue is saturated the batch is dropped
// and logged; the caller is never blocked.
func (n *Notifier) NotifyTopPerformers(entries []scoring.LeaderboardEntry) {
	top := make([]scoring.LeaderboardEntry, 0, topPerformerCutoff)
	for _, entry := range entries {
		if entry.Rank >= 1 && entry.Rank <= topPerformerCutoff {
			top = append(top, entry)
		}
	}
	if len(top) == 0 {
		return
	}

	select {
	case n.jobs <- top:
	case <-n.done:
	default:
		n.logger.Warn("notification queue saturated, dropping batch",
			zap.String("group_id", top[0].GroupID),
			zap.String("period", top[0].Period.String()))
	}
}

// Close drains queued batches and stops the worker.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.jobs)
		<-n.done
	})
}

func (n *Notifier) dispatchLoop() {
	defer close(n.done)
	for batch := range n.jobs {
		for _, entry := range batch {
			n.dispatch(entry)
		}
	}
}

func (n *Notifier) dispatch(entry scoring.LeaderboardEntry) {
	record, err := n.buildRecord(entry)
	if err != nil {
		n.logger.Error("failed to build notification",
			zap.String("group_id", entry.GroupID),
			zap.String("user_id", entry.UserID),
			zap.Error(err))
		return
	}

	if err := n.insert(record); err != nil {
		time.Sleep(retryBackoff)
		if err := n.insert(record); err != nil {
			n.logger.Error("notification dropped after retry",
				zap.String("group_id", entry.GroupID),
				zap.String("user_id", entry.UserID),
				zap.String("period", entry.Period.String()),
				zap.Error(err))
		}
	}
}

func (n *Notifier) buildRecord(entry scoring.LeaderboardEntry) (Notification, error) {
	id, err := n.ids.NewID()
	if err != nil {
		return Notification{}, err
	}
	periodStart := time.Unix(entry.PeriodStartSeconds, 0).UTC()
	message := fmt.Sprintf("Congratulations! You ranked #%d on your group's %s leaderboard for the period starting %s.",
		entry.Rank, entry.Period, periodStart.Format("2006-01-02"))
	return Notification{
		NotificationID:     id,
		UserID:             entry.UserID,
		GroupID:            entry.GroupID,
		Period:             entry.Period.String(),
		PeriodStartSeconds: entry.PeriodStartSeconds,
		Rank:               entry.Rank,
		Message:            message,
		CreatedAtSeconds:   n.clock().UTC().Unix(),
	}, nil
}

func (n *Notifier) insert(record Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()
	return n.db.WithContext(ctx).Create(&record).Error
}
