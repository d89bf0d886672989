package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TerraFitLab/terrafit/backend/internal/community"
	"github.com/TerraFitLab/terrafit/backend/internal/scoring"
	"github.com/TerraFitLab/terrafit/backend/internal/stats"
)

const subjectContextKey = "terrafit_subject"

var (
	errMissingTriggerGuard   = errors.New("trigger guard dependency required")
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingEngine         = errors.New("engine dependency required")
	errMissingLeaderboards   = errors.New("leaderboard reader dependency required")
	errMissingStats          = errors.New("stats service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TriggerGuard authenticates trigger and invalidation calls.
type TriggerGuard interface {
	Verify(presented string) error
}

// TokenValidator authenticates read-API consumers.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// LeaderboardEngine runs the full computation pass.
type LeaderboardEngine interface {
	RunAll(ctx context.Context) (scoring.BatchSummary, error)
}

// LeaderboardReader serves ranked entries for a group window.
type LeaderboardReader interface {
	Leaderboard(ctx context.Context, groupID community.GroupID, period scoring.Period, periodStart time.Time) ([]scoring.LeaderboardEntry, error)
}

// StatsProvider serves and invalidates cached group statistics.
type StatsProvider interface {
	GroupStats(ctx context.Context, groupID community.GroupID) (stats.GroupStats, error)
	Invalidate(groupID community.GroupID)
}

// Dependencies wires the HTTP surface to the engine and read services.
type Dependencies struct {
	TriggerGuard TriggerGuard
	Tokens       TokenValidator
	Engine       LeaderboardEngine
	Leaderboards LeaderboardReader
	Stats        StatsProvider
	Clock        func() time.Time
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the engine service.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TriggerGuard == nil {
		return nil, errMissingTriggerGuard
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Engine == nil {
		return nil, errMissingEngine
	}
	if deps.Leaderboards == nil {
		return nil, errMissingLeaderboards
	}
	if deps.Stats == nil {
		return nil, errMissingStats
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		guard:        deps.TriggerGuard,
		tokens:       deps.Tokens,
		engine:       deps.Engine,
		leaderboards: deps.Leaderboards,
		stats:        deps.Stats,
		clock:        clock,
		logger:       logger,
	}

	router.GET("/healthz", handler.handleHealth)

	internal := router.Group("/internal")
	internal.Use(handler.authorizeTrigger)
	internal.POST("/leaderboard/run", handler.handleLeaderboardRun)
	internal.POST("/groups/:groupID/stats/invalidate", handler.handleStatsInvalidate)

	api := router.Group("/api")
	api.Use(handler.authorizeServiceToken)
	api.GET("/groups/:groupID/leaderboard", handler.handleLeaderboard)
	api.GET("/groups/:groupID/stats", handler.handleGroupStats)

	return router, nil
}

type httpHandler struct {
	guard        TriggerGuard
	tokens       TokenValidator
	engine       LeaderboardEngine
	leaderboards LeaderboardReader
	stats        StatsProvider
	clock        func() time.Time
	logger       *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleLeaderboardRun(c *gin.Context) {
	summary, err := h.engine.RunAll(c.Request.Context())
	if err != nil {
		h.logger.Error("leaderboard run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run_failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *httpHandler) handleStatsInvalidate(c *gin.Context) {
	groupID, err := community.NewGroupID(c.Param("groupID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_group_id"})
		return
	}
	h.stats.Invalidate(groupID)
	c.Status(http.StatusNoContent)
}

type leaderboardEntryPayload struct {
	Rank               int     `json:"rank"`
	UserID             string  `json:"user_id"`
	ActivityScore      float64 `json:"activity_score"`
	WeightLossScore    float64 `json:"weight_loss_score"`
	StreakScore        float64 `json:"streak_score"`
	TotalScore         float64 `json:"total_score"`
	PeriodStartSeconds int64   `json:"period_start_s"`
	PeriodEndSeconds   int64   `json:"period_end_s"`
}

type leaderboardResponsePayload struct {
	GroupID string                    `json:"group_id"`
	Period  string                    `json:"period"`
	Entries []leaderboardEntryPayload `json:"entries"`
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	groupID, err := community.NewGroupID(c.Param("groupID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_group_id"})
		return
	}
	period, err := scoring.ParsePeriod(c.DefaultQuery("period", scoring.PeriodWeekly.String()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_period"})
		return
	}

	periodStart, err := h.resolvePeriodStart(c.Query("period_start"), period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_period_start"})
		return
	}

	entries, err := h.leaderboards.Leaderboard(c.Request.Context(), groupID, period, periodStart)
	if err != nil {
		h.logger.Error("leaderboard read failed",
			zap.String("group_id", groupID.String()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard_read_failed"})
		return
	}

	response := leaderboardResponsePayload{
		GroupID: groupID.String(),
		Period:  period.String(),
		Entries: make([]leaderboardEntryPayload, 0, len(entries)),
	}
	for _, entry := range entries {
		response.Entries = append(response.Entries, leaderboardEntryPayload{
			Rank:               entry.Rank,
			UserID:             entry.UserID,
			ActivityScore:      entry.ActivityScore,
			WeightLossScore:    entry.WeightLossScore,
			StreakScore:        entry.StreakScore,
			TotalScore:         entry.TotalScore,
			PeriodStartSeconds: entry.PeriodStartSeconds,
			PeriodEndSeconds:   entry.PeriodEndSeconds,
		})
	}
	c.JSON(http.StatusOK, response)
}

// resolvePeriodStart maps an optional unix-seconds query value to a window
// start; without one the current window applies. Historical rows stay
// readable because snapshots are never deleted.
func (h *httpHandler) resolvePeriodStart(rawValue string, period scoring.Period) (time.Time, error) {
	if strings.TrimSpace(rawValue) == "" {
		window, err := scoring.WindowContaining(period, h.clock())
		if err != nil {
			return time.Time{}, err
		}
		return window.Start, nil
	}
	seconds, err := strconv.ParseInt(strings.TrimSpace(rawValue), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(seconds, 0).UTC(), nil
}

type groupStatsResponsePayload struct {
	GroupID               string  `json:"group_id"`
	TotalMembers          int64   `json:"total_members"`
	ActiveMembers         int64   `json:"active_members"`
	TotalWeightLossKg     float64 `json:"total_weight_loss_kg"`
	AvgWeightLossKg       float64 `json:"avg_weight_loss_kg"`
	TotalPosts            int64   `json:"total_posts"`
	TotalMessages         int64   `json:"total_messages"`
	ActiveRate            float64 `json:"active_rate"`
	LastCalculatedSeconds int64   `json:"last_calculated_s"`
}

func (h *httpHandler) handleGroupStats(c *gin.Context) {
	groupID, err := community.NewGroupID(c.Param("groupID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_group_id"})
		return
	}

	snapshot, err := h.stats.GroupStats(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, stats.ErrUnknownGroup) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group_not_found"})
			return
		}
		h.logger.Error("group stats read failed",
			zap.String("group_id", groupID.String()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats_read_failed"})
		return
	}

	c.JSON(http.StatusOK, groupStatsResponsePayload{
		GroupID:               snapshot.GroupID,
		TotalMembers:          snapshot.TotalMembers,
		ActiveMembers:         snapshot.ActiveMembers,
		TotalWeightLossKg:     snapshot.TotalWeightLossKg,
		AvgWeightLossKg:       snapshot.AvgWeightLossKg,
		TotalPosts:            snapshot.TotalPosts,
		TotalMessages:         snapshot.TotalMessages,
		ActiveRate:            snapshot.ActiveRate,
		LastCalculatedSeconds: snapshot.LastCalculatedSeconds,
	})
}

// authorizeTrigger rejects unauthorized invocations before any work begins.
func (h *httpHandler) authorizeTrigger(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	if err := h.guard.Verify(token); err != nil {
		h.logger.Warn("trigger authorization failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (h *httpHandler) authorizeServiceToken(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Warn("service token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
