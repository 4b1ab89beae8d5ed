package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/sagelearn/engage-backend/internal/clients/scoring"
	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/apierr"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/repos"
	"github.com/sagelearn/engage-backend/internal/types"
)

const (
	snapshotSourceOracle  = "oracle"
	snapshotSourceStore   = "store"
	snapshotSourceDefault = "default"
)

// EngagementSnapshot is the engine's view of "how engaged is this learner
// right now", from the oracle when reachable, otherwise from stored
// telemetry.
type EngagementSnapshot struct {
	Score             float64   `json:"score"`
	AttentionScore    *float64  `json:"attentionScore,omitempty"`
	Emotion           string    `json:"emotion"`
	NeedsIntervention bool      `json:"needsIntervention"`
	SuggestedType     string    `json:"suggestedType,omitempty"`
	IsInactive        bool      `json:"isInactive"`
	Timestamp         time.Time `json:"timestamp"`
	Source            string    `json:"source"`
}

// requireOwnedSession resolves a session and checks it belongs to the
// learner. A foreign session is indistinguishable from a missing one.
func requireOwnedSession(dbc dbctx.Context, sessions repos.SessionRepo, learnerID, sessionID uuid.UUID) (*types.Session, error) {
	session, err := sessions.GetByID(dbc, sessionID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if session == nil || session.LearnerID != learnerID {
		return nil, apierr.NotFound("session")
	}
	return session, nil
}

// currentEngagement produces a snapshot, preferring the oracle, then the
// latest stored sample, then a neutral default. Oracle failure is logged and
// swallowed; this path never returns an error.
func currentEngagement(dbc dbctx.Context, oracle scoring.Oracle, samples repos.EngagementSampleRepo, policy DecisionPolicy, learnerID, sessionID uuid.UUID, log *logger.Logger) EngagementSnapshot {
	if oracle != nil {
		analysis, err := oracle.ScoreEngagement(dbc.Context(), learnerID)
		if err == nil && analysis != nil {
			return EngagementSnapshot{
				Score:             policy.AdjustedScore(analysis.EngagementScore, ""),
				AttentionScore:    analysis.AttentionScore,
				Emotion:           emotionOrNeutral(analysis.Emotion),
				NeedsIntervention: analysis.NeedsIntervention,
				SuggestedType:     analysis.SuggestedType,
				IsInactive:        analysis.IsInactive,
				Timestamp:         time.Now().UTC(),
				Source:            snapshotSourceOracle,
			}
		}
		if err != nil && log != nil {
			log.Warn("Scoring oracle unavailable, falling back to stored telemetry",
				"learner_id", learnerID, "error", err)
		}
	}

	latest, err := samples.LatestBySession(dbc, sessionID)
	if err != nil && log != nil {
		log.Warn("Telemetry fallback read failed", "session_id", sessionID, "error", err)
	}
	if latest == nil {
		return EngagementSnapshot{
			Score:     0.5,
			Emotion:   "neutral",
			Timestamp: time.Now().UTC(),
			Source:    snapshotSourceDefault,
		}
	}

	activity := latest.ActivityData()
	return EngagementSnapshot{
		Score:          latest.EngagementScore,
		AttentionScore: latest.AttentionScore,
		Emotion:        latest.EmotionData().Primary,
		IsInactive:     policy.InactivityLimitSeconds > 0 && activity.InactiveSeconds >= policy.InactivityLimitSeconds,
		Timestamp:      latest.Timestamp,
		Source:         snapshotSourceStore,
	}
}

func emotionOrNeutral(emotion string) string {
	if emotion == "" {
		return "neutral"
	}
	return emotion
}

// meanEngagement returns the mean score over samples, or nil when empty.
func meanEngagement(samples []*types.EngagementSample) *float64 {
	if len(samples) == 0 {
		return nil
	}
	var sum float64
	for _, s := range samples {
		sum += s.EngagementScore
	}
	mean := sum / float64(len(samples))
	return &mean
}
