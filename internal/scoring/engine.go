package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TerraFitLab/terrafit/backend/internal/activity"
	"github.com/TerraFitLab/terrafit/backend/internal/community"
)

var (
	errMissingCommunity = errors.New("community service is required")
	errMissingCollector = errors.New("signal collector is required")
	errMissingStore     = errors.New("snapshot store is required")
	noOpLogger          = zap.NewNop()
)

const (
	opEngineNew = "scoring.engine.new"
	opRunAll    = "scoring.run_all"

	defaultGroupTimeout        = 30 * time.Second
	defaultMaxConcurrentGroups = 4
)

// EngineError wraps engine failures with a stable operation.reason code.
type EngineError struct {
	code string
	err  error
}

func (e *EngineError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *EngineError) Unwrap() error {
	return e.err
}

// Code returns the stable operation.reason identifier.
func (e *EngineError) Code() string {
	return e.code
}

func newEngineError(operation, reason string, cause error) error {
	return &EngineError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// TopPerformerNotifier receives a committed ranked batch after the snapshot
// write. Implementations must not block the pipeline; failures on their
// side never reach the ranking path.
type TopPerformerNotifier interface {
	NotifyTopPerformers(entries []LeaderboardEntry)
}

// BatchSummary reports the outcome of one full engine invocation.
type BatchSummary struct {
	GroupsProcessed int `json:"groups_processed"`
	EntriesUpdated  int `json:"entries_updated"`
	EntriesFailed   int `json:"entries_failed"`
	PassesSkipped   int `json:"passes_skipped"`
}

// EngineConfig describes the dependencies for the leaderboard engine.
type EngineConfig struct {
	Community           *community.Service
	Collector           *activity.Collector
	Store               *SnapshotStore
	Notifier            TopPerformerNotifier
	Clock               func() time.Time
	Logger              *zap.Logger
	GroupTimeout        time.Duration
	MaxConcurrentGroups int
}

// Engine runs the full leaderboard pipeline: collect signals, compute
// scores, rank, persist snapshots, and hand top performers to the notifier.
type Engine struct {
	community    *community.Service
	collector    *activity.Collector
	store        *SnapshotStore
	notifier     TopPerformerNotifier
	clock        func() time.Time
	logger       *zap.Logger
	groupTimeout time.Duration
	maxParallel  int

	// passLocks serializes overlapping runs touching the same
	// (group, period, period start) so a rank set is never torn between
	// two unsynchronized passes.
	passLocks sync.Map
}

// NewEngine constructs the leaderboard engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Community == nil {
		return nil, newEngineError(opEngineNew, "missing_community", errMissingCommunity)
	}
	if cfg.Collector == nil {
		return nil, newEngineError(opEngineNew, "missing_collector", errMissingCollector)
	}
	if cfg.Store == nil {
		return nil, newEngineError(opEngineNew, "missing_store", errMissingStore)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	timeout := cfg.GroupTimeout
	if timeout <= 0 {
		timeout = defaultGroupTimeout
	}
	parallel := cfg.MaxConcurrentGroups
	if parallel <= 0 {
		parallel = defaultMaxConcurrentGroups
	}

	return &Engine{
		community:    cfg.Community,
		collector:    cfg.Collector,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		clock:        clock,
		logger:       logger,
		groupTimeout: timeout,
		maxParallel:  parallel,
	}, nil
}

type runTally struct {
	mu      sync.Mutex
	summary BatchSummary
}

func (t *runTally) groupDone() {
	t.mu.Lock()
	t.summary.GroupsProcessed++
	t.mu.Unlock()
}

func (t *runTally) passResult(updated, failed int) {
	t.mu.Lock()
	t.summary.EntriesUpdated += updated
	t.summary.EntriesFailed += failed
	t.mu.Unlock()
}

func (t *runTally) passSkipped() {
	t.mu.Lock()
	t.summary.PassesSkipped++
	t.mu.Unlock()
}

func (t *runTally) snapshot() BatchSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// RunAll processes every approved group for both period kinds and returns
// the batch summary. Per-group and per-entry failures are isolated; only a
// failure to enumerate groups aborts the invocation.
func (e *Engine) RunAll(ctx context.Context) (BatchSummary, error) {
	groups, err := e.community.ListApprovedGroups(ctx)
	if err != nil {
		e.logger.Error("failed to list approved groups", zap.Error(err))
		return BatchSummary{}, newEngineError(opRunAll, "list_groups_failed", err)
	}

	tally := &runTally{}
	workers := &errgroup.Group{}
	workers.SetLimit(e.maxParallel)

	for _, group := range groups {
		group := group
		workers.Go(func() error {
			e.processGroup(ctx, group, tally)
			return nil
		})
	}
	_ = workers.Wait()

	summary := tally.snapshot()
	e.logger.Info("leaderboard run complete",
		zap.Int("groups_processed", summary.GroupsProcessed),
		zap.Int("entries_updated", summary.EntriesUpdated),
		zap.Int("entries_failed", summary.EntriesFailed),
		zap.Int("passes_skipped", summary.PassesSkipped))
	return summary, nil
}

func (e *Engine) processGroup(ctx context.Context, group community.Group, tally *runTally) {
	groupID := community.GroupID(group.GroupID)
	completed := false

	for _, period := range Periods {
		if e.runPass(ctx, groupID, period, tally) {
			completed = true
		}
	}

	if completed {
		tally.groupDone()
	}
}

// runPass executes one (group, period) pipeline pass and reports whether it
// completed. Skips are counted on the tally and logged, never propagated.
func (e *Engine) runPass(ctx context.Context, groupID community.GroupID, period Period, tally *runTally) bool {
	window, err := WindowContaining(period, e.clock())
	if err == nil {
		err = window.Validate()
	}
	if err != nil {
		tally.passSkipped()
		e.logger.Warn("skipping pass for invalid window",
			zap.String("group_id", groupID.String()),
			zap.String("period", period.String()),
			zap.Error(err))
		return false
	}

	lock := e.passLock(groupID, period, window.Start)
	lock.Lock()
	defer lock.Unlock()

	passCtx, cancel := context.WithTimeout(ctx, e.groupTimeout)
	defer cancel()

	entries, err := e.computeEntries(passCtx, groupID, period, window)
	if err != nil {
		tally.passSkipped()
		e.logger.Warn("skipping pass",
			zap.String("group_id", groupID.String()),
			zap.String("period", period.String()),
			zap.Error(err))
		return false
	}

	updated, failed := e.store.UpsertEntries(passCtx, entries)
	tally.passResult(updated, failed)

	// Notification handoff is fire-and-forget after the snapshot write;
	// the notifier's outcome never feeds back into the committed ranking.
	if updated > 0 && e.notifier != nil {
		e.notifier.NotifyTopPerformers(entries)
	}
	return true
}

func (e *Engine) computeEntries(ctx context.Context, groupID community.GroupID, period Period, window Window) ([]LeaderboardEntry, error) {
	memberIDs, err := e.community.ListMemberIDs(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	signals, err := e.collector.Collect(ctx, groupID, memberIDs, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("collect signals: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pass deadline exceeded: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		breakdown := ComputeBreakdown(signals[memberID])
		entries = append(entries, LeaderboardEntry{
			GroupID:            groupID.String(),
			UserID:             memberID.String(),
			Period:             period,
			PeriodStartSeconds: window.Start.Unix(),
			PeriodEndSeconds:   window.End.Unix(),
			ActivityScore:      breakdown.Activity,
			WeightLossScore:    breakdown.WeightLoss,
			StreakScore:        breakdown.Streak,
			TotalScore:         breakdown.Total,
		})
	}

	return RankEntries(entries), nil
}

func (e *Engine) passLock(groupID community.GroupID, period Period, periodStart time.Time) *sync.Mutex {
	key := fmt.Sprintf("%s|%s|%d", groupID.String(), period, periodStart.Unix())
	value, _ := e.passLocks.LoadOrStore(key, &sync.Mutex{})
	return value.(*sync.Mutex)
}
