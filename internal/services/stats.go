package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/apierr"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/repos"
	"github.com/sagelearn/engage-backend/internal/types"
)

type PlatformSummary struct {
	SessionCount         int64   `json:"sessionCount"`
	TotalDurationSeconds float64 `json:"totalDurationSeconds"`
	AverageEngagement    float64 `json:"averageEngagement"`
}

type SessionStatsResult struct {
	TotalSessions        int64                      `json:"totalSessions"`
	TotalDurationSeconds float64                    `json:"totalDurationSeconds"`
	AverageEngagement    float64                    `json:"averageEngagement"`
	Platforms            map[string]PlatformSummary `json:"platforms"`
}

// StatsService maintains per-learner, per-platform rollups. FoldSession is the
// write path, called once for every session close; the rollup rows are a
// cache and can always be rebuilt from the closed sessions themselves.
type StatsService interface {
	FoldSession(dbc dbctx.Context, session *types.Session) error
	SessionStats(dbc dbctx.Context, learnerID uuid.UUID, from, to *time.Time) (*SessionStatsResult, error)
	Rebuild(dbc dbctx.Context, learnerID uuid.UUID) error
}

type statsService struct {
	db       *gorm.DB
	log      *logger.Logger
	sessions repos.SessionRepo
	stats    repos.PlatformStatRepo
}

func NewStatsService(db *gorm.DB, baseLog *logger.Logger, sessions repos.SessionRepo, stats repos.PlatformStatRepo) StatsService {
	return &statsService{
		db:       db,
		log:      baseLog.With("service", "StatsService"),
		sessions: sessions,
		stats:    stats,
	}
}

// FoldSession merges one closed session into its platform rollup. The
// engagement average is a running mean over sessions that actually recorded
// engagement; sessions without telemetry bump counts and duration only.
func (s *statsService) FoldSession(dbc dbctx.Context, session *types.Session) error {
	if session == nil {
		return fmt.Errorf("nil session")
	}
	if session.IsActive {
		return fmt.Errorf("cannot fold active session %s into stats", session.ID)
	}

	stat, err := s.stats.Get(dbc, session.LearnerID, session.Platform)
	if err != nil {
		return err
	}
	if stat == nil {
		stat = &types.PlatformStat{
			LearnerID: session.LearnerID,
			Platform:  session.Platform,
		}
	}

	stat.SessionCount++
	stat.TotalDurationSeconds += session.DurationSeconds
	if session.OverallEngagement != nil {
		stat.EngagedCount++
		n := float64(stat.EngagedCount)
		stat.AverageEngagement = (stat.AverageEngagement*(n-1) + *session.OverallEngagement) / n
	}
	return s.stats.Save(dbc, stat)
}

// SessionStats without a date range reads the rollup rows; with a range it
// recomputes from the closed sessions inside the window.
func (s *statsService) SessionStats(dbc dbctx.Context, learnerID uuid.UUID, from, to *time.Time) (*SessionStatsResult, error) {
	if from == nil && to == nil {
		return s.statsFromRollup(dbc, learnerID)
	}
	return s.statsFromSessions(dbc, learnerID, from, to)
}

func (s *statsService) statsFromRollup(dbc dbctx.Context, learnerID uuid.UUID) (*SessionStatsResult, error) {
	rows, err := s.stats.ListByLearner(dbc, learnerID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	result := &SessionStatsResult{Platforms: make(map[string]PlatformSummary)}
	var weightedSum float64
	var engagedTotal int64
	for _, row := range rows {
		result.TotalSessions += row.SessionCount
		result.TotalDurationSeconds += row.TotalDurationSeconds
		weightedSum += row.AverageEngagement * float64(row.EngagedCount)
		engagedTotal += row.EngagedCount
		result.Platforms[row.Platform] = PlatformSummary{
			SessionCount:         row.SessionCount,
			TotalDurationSeconds: row.TotalDurationSeconds,
			AverageEngagement:    row.AverageEngagement,
		}
	}
	if engagedTotal > 0 {
		result.AverageEngagement = weightedSum / float64(engagedTotal)
	}
	return result, nil
}

func (s *statsService) statsFromSessions(dbc dbctx.Context, learnerID uuid.UUID, from, to *time.Time) (*SessionStatsResult, error) {
	closed, err := s.sessions.ListClosedByLearner(dbc, learnerID, from, to)
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	result := &SessionStatsResult{Platforms: make(map[string]PlatformSummary)}
	type acc struct {
		count    int64
		duration float64
		sum      float64
		engaged  int64
	}
	byPlatform := make(map[string]*acc)
	var totalSum float64
	var totalEngaged int
	for _, session := range closed {
		a, ok := byPlatform[session.Platform]
		if !ok {
			a = &acc{}
			byPlatform[session.Platform] = a
		}
		result.TotalSessions++
		result.TotalDurationSeconds += session.DurationSeconds
		a.count++
		a.duration += session.DurationSeconds
		if session.OverallEngagement != nil {
			a.sum += *session.OverallEngagement
			a.engaged++
			totalSum += *session.OverallEngagement
			totalEngaged++
		}
	}
	if totalEngaged > 0 {
		result.AverageEngagement = totalSum / float64(totalEngaged)
	}
	for platform, a := range byPlatform {
		summary := PlatformSummary{SessionCount: a.count, TotalDurationSeconds: a.duration}
		if a.engaged > 0 {
			summary.AverageEngagement = a.sum / float64(a.engaged)
		}
		result.Platforms[platform] = summary
	}
	return result, nil
}

// Rebuild drops the learner's rollup rows and re-folds every closed session,
// all in one transaction. Used after backfills or manual data fixes.
func (s *statsService) Rebuild(dbc dbctx.Context, learnerID uuid.UUID) error {
	txErr := s.db.WithContext(dbc.Context()).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if err := s.stats.DeleteByLearner(inner, learnerID); err != nil {
			return err
		}
		closed, err := s.sessions.ListClosedByLearner(inner, learnerID, nil, nil)
		if err != nil {
			return err
		}
		for _, session := range closed {
			if err := s.FoldSession(inner, session); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return apierr.Persistence(txErr)
	}
	s.log.Info("Rebuilt platform stats", "learner_id", learnerID)
	return nil
}
