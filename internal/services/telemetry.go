package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	redisbus "github.com/sagelearn/engage-backend/internal/clients/redis"
	"github.com/sagelearn/engage-backend/internal/clients/scoring"
	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/apierr"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/repos"
	"github.com/sagelearn/engage-backend/internal/types"
)

// SampleInput is one engagement measurement as submitted by the client. A
// missing timestamp is stamped server-side; a missing score defaults to the
// neutral 0.5 the product has always used.
type SampleInput struct {
	SessionID       uuid.UUID            `json:"sessionId"`
	Timestamp       *time.Time           `json:"timestamp,omitempty"`
	EngagementScore *float64             `json:"engagementScore,omitempty"`
	AttentionScore  *float64             `json:"attentionScore,omitempty"`
	Emotion         *types.Emotion       `json:"emotion,omitempty"`
	Activity        *types.Activity      `json:"activity,omitempty"`
	Audio           *types.Audio         `json:"audio,omitempty"`
	VideoProgress   *types.VideoProgress `json:"videoProgress,omitempty"`
}

type EngagementAverages struct {
	MeanEngagement   float64        `json:"meanEngagement"`
	EmotionHistogram map[string]int `json:"emotionHistogram"`
}

type TelemetryService interface {
	Append(dbc dbctx.Context, learnerID uuid.UUID, in SampleInput) (*types.EngagementSample, error)
	Latest(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*types.EngagementSample, error)
	Range(dbc dbctx.Context, learnerID, sessionID uuid.UUID, from, to time.Time) ([]*types.EngagementSample, error)
	// Timeline returns the session's series downsampled to at most
	// targetPoints samples; targetPoints <= 0 returns the full series.
	Timeline(dbc dbctx.Context, learnerID, sessionID uuid.UUID, targetPoints int) ([]*types.EngagementSample, error)
	// Averages returns nil (no error) when the session has no samples yet.
	Averages(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*EngagementAverages, error)
	Current(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*EngagementSnapshot, error)
}

type telemetryService struct {
	db       *gorm.DB
	log      *logger.Logger
	sessions repos.SessionRepo
	samples  repos.EngagementSampleRepo
	oracle   scoring.Oracle
	bus      redisbus.EngagementBus
	policy   DecisionPolicy
}

// Oracle and bus may be nil; the service degrades to stored telemetry and
// skips live publishing.
func NewTelemetryService(db *gorm.DB, baseLog *logger.Logger, sessions repos.SessionRepo, samples repos.EngagementSampleRepo, oracle scoring.Oracle, bus redisbus.EngagementBus, policy DecisionPolicy) TelemetryService {
	return &telemetryService{
		db:       db,
		log:      baseLog.With("service", "TelemetryService"),
		sessions: sessions,
		samples:  samples,
		oracle:   oracle,
		bus:      bus,
		policy:   policy,
	}
}

func (s *telemetryService) Append(dbc dbctx.Context, learnerID uuid.UUID, in SampleInput) (*types.EngagementSample, error) {
	session, err := requireOwnedSession(dbc, s.sessions, learnerID, in.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, apierr.SessionNotActive(fmt.Errorf("session %s is closed", session.ID))
	}

	score := 0.5
	if in.EngagementScore != nil {
		score = *in.EngagementScore
	}
	if score < 0 || score > 1 {
		return nil, apierr.Validation(fmt.Errorf("engagementScore %v out of range [0,1]", score))
	}
	if in.AttentionScore != nil && (*in.AttentionScore < 0 || *in.AttentionScore > 1) {
		return nil, apierr.Validation(fmt.Errorf("attentionScore %v out of range [0,1]", *in.AttentionScore))
	}

	ts := time.Now().UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}

	sample := &types.EngagementSample{
		SessionID:       session.ID,
		Timestamp:       ts,
		EngagementScore: score,
		AttentionScore:  in.AttentionScore,
	}
	if sample.Emotion, err = types.ToJSONB(in.Emotion); err != nil {
		return nil, apierr.Validation(err)
	}
	if sample.Activity, err = types.ToJSONB(in.Activity); err != nil {
		return nil, apierr.Validation(err)
	}
	if sample.Audio, err = types.ToJSONB(in.Audio); err != nil {
		return nil, apierr.Validation(err)
	}
	if sample.VideoProgress, err = types.ToJSONB(in.VideoProgress); err != nil {
		return nil, apierr.Validation(err)
	}

	if err := s.samples.Create(dbc, sample); err != nil {
		return nil, apierr.Persistence(err)
	}

	if s.bus != nil {
		update := redisbus.EngagementUpdate{
			LearnerID: learnerID,
			SessionID: session.ID,
			Score:     sample.EngagementScore,
			Emotion:   sample.EmotionData().Primary,
			Timestamp: sample.Timestamp,
		}
		if err := s.bus.Publish(dbc.Context(), update); err != nil {
			s.log.Debug("Live engagement publish failed", "session_id", session.ID, "error", err)
		}
	}

	return sample, nil
}

func (s *telemetryService) Latest(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*types.EngagementSample, error) {
	if _, err := requireOwnedSession(dbc, s.sessions, learnerID, sessionID); err != nil {
		return nil, err
	}
	sample, err := s.samples.LatestBySession(dbc, sessionID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return sample, nil
}

func (s *telemetryService) Range(dbc dbctx.Context, learnerID, sessionID uuid.UUID, from, to time.Time) ([]*types.EngagementSample, error) {
	if _, err := requireOwnedSession(dbc, s.sessions, learnerID, sessionID); err != nil {
		return nil, err
	}
	samples, err := s.samples.RangeBySession(dbc, sessionID, from, to)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return samples, nil
}

func (s *telemetryService) Timeline(dbc dbctx.Context, learnerID, sessionID uuid.UUID, targetPoints int) ([]*types.EngagementSample, error) {
	all, err := s.Range(dbc, learnerID, sessionID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	if targetPoints <= 0 {
		return all, nil
	}
	return decimate(all, targetPoints), nil
}

func (s *telemetryService) Averages(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*EngagementAverages, error) {
	all, err := s.Range(dbc, learnerID, sessionID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	// A session with no telemetry yet is valid; callers render "no data".
	if len(all) == 0 {
		return nil, nil
	}

	histogram := make(map[string]int)
	for _, sample := range all {
		histogram[sample.EmotionData().Primary]++
	}
	return &EngagementAverages{
		MeanEngagement:   *meanEngagement(all),
		EmotionHistogram: histogram,
	}, nil
}

func (s *telemetryService) Current(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*EngagementSnapshot, error) {
	if _, err := requireOwnedSession(dbc, s.sessions, learnerID, sessionID); err != nil {
		return nil, err
	}
	snap := currentEngagement(dbc, s.oracle, s.samples, s.policy, learnerID, sessionID, s.log)
	return &snap, nil
}

// decimate picks min(target, len) samples by nearest-index selection:
// step = len/target, index floor(i*step) clamped to len-1. Deterministic for
// fixed (len, target) and always keeps index 0.
func decimate(samples []*types.EngagementSample, target int) []*types.EngagementSample {
	if len(samples) <= target {
		return samples
	}
	out := make([]*types.EngagementSample, 0, target)
	step := float64(len(samples)) / float64(target)
	for i := 0; i < target; i++ {
		idx := int(float64(i) * step)
		if idx > len(samples)-1 {
			idx = len(samples) - 1
		}
		out = append(out, samples[idx])
	}
	return out
}
