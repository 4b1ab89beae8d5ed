package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/pkg/keylock"
	"github.com/sagelearn/engage-backend/internal/platform/apierr"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/repos"
	"github.com/sagelearn/engage-backend/internal/types"
)

type SessionStartInput struct {
	CourseURL  string         `json:"courseUrl"`
	CourseName string         `json:"courseName"`
	Platform   string         `json:"platform"`
	DeviceInfo map[string]any `json:"deviceInfo,omitempty"`
}

// SessionStartResult reports the new session and, when a stale one was still
// open, the id it implicitly closed. Clients that missed an "end" signal can
// detect the takeover from ClosedSessionID.
type SessionStartResult struct {
	Session         *types.Session `json:"session"`
	ClosedSessionID *uuid.UUID     `json:"closedSessionId,omitempty"`
}

type SessionPage struct {
	Sessions []*types.Session `json:"sessions"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

type SessionDetail struct {
	Session       *types.Session            `json:"session"`
	Timeline      []*types.EngagementSample `json:"engagementData"`
	SampleCount   int64                     `json:"sampleCount"`
	Interventions []*types.Intervention     `json:"interventions"`
}

type SessionService interface {
	Start(dbc dbctx.Context, learnerID uuid.UUID, in SessionStartInput) (*SessionStartResult, error)
	End(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*types.Session, error)
	GetActive(dbc dbctx.Context, learnerID uuid.UUID) (*types.Session, error)
	GetByID(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*types.Session, error)
	List(dbc dbctx.Context, learnerID uuid.UUID, filter repos.SessionFilter, page, limit int) (*SessionPage, error)
	Detail(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*SessionDetail, error)
}

type sessionService struct {
	db            *gorm.DB
	log           *logger.Logger
	sessions      repos.SessionRepo
	samples       repos.EngagementSampleRepo
	interventions repos.InterventionRepo
	stats         StatsService
	locks         *keylock.KeyedMutex
}

func NewSessionService(db *gorm.DB, baseLog *logger.Logger, sessions repos.SessionRepo, samples repos.EngagementSampleRepo, interventions repos.InterventionRepo, stats StatsService, locks *keylock.KeyedMutex) SessionService {
	return &sessionService{
		db:            db,
		log:           baseLog.With("service", "SessionService"),
		sessions:      sessions,
		samples:       samples,
		interventions: interventions,
		stats:         stats,
		locks:         locks,
	}
}

// Start opens a session, first closing any session still active for the
// learner. Close-old and open-new share one transaction under the learner
// lock, so concurrent starts cannot leave two active sessions or a half-open
// state.
func (s *sessionService) Start(dbc dbctx.Context, learnerID uuid.UUID, in SessionStartInput) (*SessionStartResult, error) {
	if learnerID == uuid.Nil {
		return nil, apierr.Validation(fmt.Errorf("learner id required"))
	}
	if in.CourseURL == "" {
		return nil, apierr.Validation(fmt.Errorf("courseUrl required"))
	}
	platform := in.Platform
	if platform == "" {
		platform = "unknown"
	}
	deviceInfo, err := types.ToJSONB(in.DeviceInfo)
	if err != nil {
		return nil, apierr.Validation(err)
	}

	unlock := s.locks.Lock("learner:" + learnerID.String())
	defer unlock()

	now := time.Now().UTC()
	var result SessionStartResult
	txErr := s.db.WithContext(dbc.Context()).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}

		active, err := s.sessions.GetActiveByLearner(inner, learnerID)
		if err != nil {
			return err
		}
		if active != nil {
			if _, err := s.closeSession(inner, active, now); err != nil {
				return err
			}
			closedID := active.ID
			result.ClosedSessionID = &closedID
			s.log.Info("Implicitly closed stale session on start",
				"learner_id", learnerID, "session_id", closedID)
		}

		session := &types.Session{
			LearnerID:  learnerID,
			CourseURL:  in.CourseURL,
			CourseName: in.CourseName,
			Platform:   platform,
			DeviceInfo: deviceInfo,
			StartTime:  now,
			IsActive:   true,
		}
		if err := s.sessions.Create(inner, session); err != nil {
			return err
		}
		result.Session = session
		return nil
	})
	if txErr != nil {
		return nil, apierr.Persistence(txErr)
	}
	return &result, nil
}

func (s *sessionService) End(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*types.Session, error) {
	unlock := s.locks.Lock("learner:" + learnerID.String())
	defer unlock()

	session, err := requireOwnedSession(dbc, s.sessions, learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, apierr.AlreadyClosed(fmt.Errorf("session %s is already ended", session.ID))
	}

	now := time.Now().UTC()
	var closed *types.Session
	txErr := s.db.WithContext(dbc.Context()).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		closed, err = s.closeSession(inner, session, now)
		return err
	})
	if txErr != nil {
		return nil, apierr.Persistence(txErr)
	}
	return closed, nil
}

// closeSession finalizes a session: end time, duration, overall engagement
// from its samples, and the stats fold. Runs inside the caller's transaction.
func (s *sessionService) closeSession(dbc dbctx.Context, session *types.Session, now time.Time) (*types.Session, error) {
	samples, err := s.samples.RangeBySession(dbc, session.ID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"is_active":        false,
		"end_time":         now,
		"duration_seconds": now.Sub(session.StartTime).Seconds(),
		"updated_at":       now,
	}
	if mean := meanEngagement(samples); mean != nil {
		updates["overall_engagement"] = *mean
	}
	if err := s.sessions.UpdateFields(dbc, session.ID, updates); err != nil {
		return nil, err
	}

	closed, err := s.sessions.GetByID(dbc, session.ID)
	if err != nil {
		return nil, err
	}
	if closed == nil {
		return nil, fmt.Errorf("session %s disappeared during close", session.ID)
	}
	if err := s.stats.FoldSession(dbc, closed); err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *sessionService) GetActive(dbc dbctx.Context, learnerID uuid.UUID) (*types.Session, error) {
	session, err := s.sessions.GetActiveByLearner(dbc, learnerID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if session == nil {
		return nil, apierr.NotFound("active session")
	}
	return session, nil
}

func (s *sessionService) GetByID(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*types.Session, error) {
	return requireOwnedSession(dbc, s.sessions, learnerID, sessionID)
}

func (s *sessionService) List(dbc dbctx.Context, learnerID uuid.UUID, filter repos.SessionFilter, page, limit int) (*SessionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	sessions, total, err := s.sessions.List(dbc, learnerID, filter, page, limit)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return &SessionPage{Sessions: sessions, Total: total, Page: page, Limit: limit}, nil
}

func (s *sessionService) Detail(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*SessionDetail, error) {
	session, err := requireOwnedSession(dbc, s.sessions, learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	timeline, err := s.samples.RangeBySession(dbc, sessionID, time.Time{}, time.Time{})
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	count, err := s.samples.CountBySession(dbc, sessionID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	interventions, err := s.interventions.ListBySessionDesc(dbc, sessionID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return &SessionDetail{
		Session:       session,
		Timeline:      timeline,
		SampleCount:   count,
		Interventions: interventions,
	}, nil
}
