package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagelearn/engage-backend/internal/clients/scoring"
	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/pkg/keylock"
	"github.com/sagelearn/engage-backend/internal/platform/apierr"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/repos"
	"github.com/sagelearn/engage-backend/internal/types"
)

const (
	decisionReasonCooldown = "cooldown_active"
	decisionReasonEngaged  = "no_action_needed"
)

// Decision is the outcome of one Evaluate call. NeedsIntervention=false is a
// normal result, never an error.
type Decision struct {
	NeedsIntervention bool                `json:"needsIntervention"`
	Reason            string              `json:"reason,omitempty"`
	Intervention      *types.Intervention `json:"intervention,omitempty"`
}

type ResponseInput struct {
	Accepted          *bool    `json:"accepted"`
	CompletionSeconds *float64 `json:"completionTimeSeconds,omitempty"`
	Feedback          *string  `json:"feedback,omitempty"`
	Answers           []int    `json:"answers,omitempty"`
}

type TypeStats struct {
	Count              int     `json:"count"`
	AcceptanceRate     float64 `json:"acceptanceRate"`
	EffectivenessScore float64 `json:"effectivenessScore"`
}

type InterventionStats struct {
	TotalInterventions int                                `json:"totalInterventions"`
	ResponseRate       float64                            `json:"responseRate"`
	AcceptanceRate     float64                            `json:"acceptanceRate"`
	EffectivenessScore float64                            `json:"effectivenessScore"`
	TypeBreakdown      map[types.InterventionType]TypeStats `json:"typeBreakdown"`
}

type InterventionService interface {
	Evaluate(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*Decision, error)
	RecordResponse(dbc dbctx.Context, learnerID, interventionID uuid.UUID, in ResponseInput) (*types.Intervention, error)
	History(dbc dbctx.Context, learnerID, sessionID uuid.UUID) ([]*types.Intervention, error)
	Stats(dbc dbctx.Context, learnerID uuid.UUID) (*InterventionStats, error)
}

type interventionService struct {
	db            *gorm.DB
	log           *logger.Logger
	sessions      repos.SessionRepo
	samples       repos.EngagementSampleRepo
	interventions repos.InterventionRepo
	resources     repos.LearningResourceRepo
	oracle        scoring.Oracle
	policy        DecisionPolicy
	locks         *keylock.KeyedMutex
	now           func() time.Time
}

func NewInterventionService(db *gorm.DB, baseLog *logger.Logger, sessions repos.SessionRepo, samples repos.EngagementSampleRepo, interventions repos.InterventionRepo, resources repos.LearningResourceRepo, oracle scoring.Oracle, policy DecisionPolicy, locks *keylock.KeyedMutex) InterventionService {
	return &interventionService{
		db:            db,
		log:           baseLog.With("service", "InterventionService"),
		sessions:      sessions,
		samples:       samples,
		interventions: interventions,
		resources:     resources,
		oracle:        oracle,
		policy:        policy,
		locks:         locks,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate decides whether to interrupt the learner. The cooldown is checked
// before any scoring call to avoid wasted inference; the oracle call runs
// outside any lock; the final cooldown re-check and insert are atomic so two
// concurrent evaluates cannot both fire.
func (s *interventionService) Evaluate(dbc dbctx.Context, learnerID, sessionID uuid.UUID) (*Decision, error) {
	session, err := requireOwnedSession(dbc, s.sessions, learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, apierr.SessionNotActive(fmt.Errorf("session %s is not active", session.ID))
	}

	now := s.now()
	inCooldown, err := s.cooldownActive(dbc, sessionID, now)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if inCooldown {
		return &Decision{Reason: decisionReasonCooldown}, nil
	}

	snap := currentEngagement(dbc, s.oracle, s.samples, s.policy, learnerID, sessionID, s.log)

	trigger, need := s.policy.Classify(snap)
	if !need {
		return &Decision{Reason: decisionReasonEngaged}, nil
	}

	ivType := s.policy.TypeFor(trigger, snap.SuggestedType)
	content := s.resolveContent(dbc, ivType, session.CourseName)
	raw, err := types.EncodeContent(content)
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	before := snap.Score
	intervention := &types.Intervention{
		SessionID:        session.ID,
		Timestamp:        now,
		Type:             ivType,
		Trigger:          trigger,
		EngagementBefore: &before,
		Content:          raw,
	}

	// Re-check under the lock: another evaluate may have fired between the
	// precheck and here.
	unlock := s.locks.Lock("evaluate:" + sessionID.String())
	defer unlock()
	inCooldown, err = s.cooldownActive(dbc, sessionID, now)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if inCooldown {
		return &Decision{Reason: decisionReasonCooldown}, nil
	}
	if err := s.interventions.Create(dbc, intervention); err != nil {
		return nil, apierr.Persistence(err)
	}

	s.log.Info("Intervention triggered",
		"session_id", session.ID, "type", ivType, "trigger", trigger,
		"engagement_before", before, "snapshot_source", snap.Source)
	return &Decision{NeedsIntervention: true, Intervention: intervention}, nil
}

func (s *interventionService) cooldownActive(dbc dbctx.Context, sessionID uuid.UUID, now time.Time) (bool, error) {
	last, err := s.interventions.LatestBySession(dbc, sessionID)
	if err != nil {
		return false, err
	}
	return last != nil && now.Sub(last.Timestamp) < s.policy.Cooldown(), nil
}

// resolveContent never fails the decision: missing curated content degrades
// to a generic built-in template per type.
func (s *interventionService) resolveContent(dbc dbctx.Context, t types.InterventionType, courseTag string) types.Content {
	switch t {
	case types.InterventionBreak:
		return types.BreakContent{
			Title:           "Time for a Quick Break",
			Description:     "You've been studying for a while. Take 5 minutes to refresh.",
			DurationSeconds: 300,
		}
	case types.InterventionQuiz:
		if res := s.lookupResource(dbc, "quiz", courseTag); res != nil {
			return types.QuizContent{
				Title:       res.Title,
				Description: res.Description,
				Questions:   genericQuizQuestions(),
			}
		}
		return types.QuizContent{
			Title:       "Quick Knowledge Check",
			Description: "Let's see what you remember from this section:",
			Questions:   genericQuizQuestions(),
		}
	case types.InterventionVideo:
		if res := s.lookupResource(dbc, "video", courseTag); res != nil {
			return types.VideoContent{
				Title:           res.Title,
				Description:     res.Description,
				URL:             res.URL,
				DurationSeconds: res.DurationSeconds,
			}
		}
		return types.VideoContent{
			Title:           "Take a Different Approach",
			Description:     "Here's a short video that explains this concept differently:",
			URL:             "https://example.com/sample-video",
			DurationSeconds: 180,
		}
	case types.InterventionResource:
		found, err := s.resources.FindTagged(dbc, []string{"article", "exercise"}, courseTag, 2)
		if err != nil {
			s.log.Warn("Resource lookup failed, using generic template", "error", err)
		}
		if len(found) > 0 {
			links := make([]types.ResourceLink, 0, len(found))
			for _, r := range found {
				links = append(links, types.ResourceLink{
					Title:       r.Title,
					Description: r.Description,
					URL:         r.URL,
					Type:        r.ResourceType,
				})
			}
			return types.ResourceContent{
				Title:       "Need More Help?",
				Description: "Check out these resources:",
				Resources:   links,
			}
		}
		return types.ResourceContent{
			Title:       "Additional Resources",
			Description: "Here are some resources that might help:",
			Resources: []types.ResourceLink{{
				Title:       "Sample Resource",
				Description: "A helpful explanation of this concept",
				URL:         "https://example.com/resource",
				Type:        "article",
			}},
		}
	default:
		return types.PromptContent{
			Title:       "Quick Check-in",
			Description: "How are you doing with this material?",
			Options:     []string{"Good, continuing", "Need a break", "Finding it difficult"},
		}
	}
}

func (s *interventionService) lookupResource(dbc dbctx.Context, resourceType, tag string) *types.LearningResource {
	res, err := s.resources.FindFirstTagged(dbc, resourceType, tag)
	if err != nil {
		s.log.Warn("Resource lookup failed, using generic template",
			"resource_type", resourceType, "error", err)
		return nil
	}
	return res
}

func genericQuizQuestions() []types.QuizQuestion {
	return []types.QuizQuestion{{
		Question:      "What was the main topic covered in this section?",
		Options:       []string{"Option A", "Option B", "Option C", "Option D"},
		CorrectAnswer: 0,
	}}
}

// RecordResponse is exactly-once: a second call for the same intervention
// fails with already_responded and never recomputes a finalized quiz score.
func (s *interventionService) RecordResponse(dbc dbctx.Context, learnerID, interventionID uuid.UUID, in ResponseInput) (*types.Intervention, error) {
	unlock := s.locks.Lock("respond:" + interventionID.String())
	defer unlock()

	intervention, err := s.interventions.GetByID(dbc, interventionID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if intervention == nil {
		return nil, apierr.NotFound("intervention")
	}
	session, err := s.sessions.GetByID(dbc, intervention.SessionID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if session == nil || session.LearnerID != learnerID {
		return nil, apierr.NotFound("intervention")
	}
	if intervention.Responded {
		return nil, apierr.AlreadyResponded(fmt.Errorf("intervention %s already has a response", intervention.ID))
	}

	now := s.now()
	updates := map[string]any{
		"responded":  true,
		"updated_at": now,
	}
	if in.Accepted != nil {
		updates["accepted"] = *in.Accepted
	}
	if in.CompletionSeconds != nil {
		updates["completion_seconds"] = *in.CompletionSeconds
	}
	if in.Feedback != nil {
		updates["feedback"] = *in.Feedback
	}

	if intervention.Type == types.InterventionQuiz && len(in.Answers) > 0 {
		scored, err := scoreQuiz(intervention, in.Answers)
		if err != nil {
			return nil, err
		}
		updates["content"] = scored
	}

	snap := currentEngagement(dbc, s.oracle, s.samples, s.policy, learnerID, intervention.SessionID, s.log)
	if snap.Source != snapshotSourceDefault {
		updates["engagement_after"] = snap.Score
	}

	if err := s.interventions.UpdateFields(dbc, intervention.ID, updates); err != nil {
		return nil, apierr.Persistence(err)
	}
	updated, err := s.interventions.GetByID(dbc, intervention.ID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return updated, nil
}

// scoreQuiz fills per-question user answers and derives score = correct/total.
// Answers beyond the question count are ignored; unanswered questions count
// as wrong.
func scoreQuiz(intervention *types.Intervention, answers []int) (any, error) {
	decoded, err := types.DecodeContent(intervention.Type, intervention.Content)
	if err != nil {
		return nil, apierr.Validation(fmt.Errorf("decode quiz content: %w", err))
	}
	quiz, ok := decoded.(types.QuizContent)
	if !ok || len(quiz.Questions) == 0 {
		return nil, apierr.Validation(fmt.Errorf("intervention has no quiz questions"))
	}
	if quiz.Score != nil {
		return nil, apierr.AlreadyResponded(fmt.Errorf("quiz score already finalized"))
	}

	correct := 0
	for i, answer := range answers {
		if i >= len(quiz.Questions) {
			break
		}
		a := answer
		quiz.Questions[i].UserAnswer = &a
		if answer == quiz.Questions[i].CorrectAnswer {
			correct++
		}
	}
	score := float64(correct) / float64(len(quiz.Questions))
	quiz.Score = &score

	raw, err := types.EncodeContent(quiz)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return raw, nil
}

func (s *interventionService) History(dbc dbctx.Context, learnerID, sessionID uuid.UUID) ([]*types.Intervention, error) {
	if _, err := requireOwnedSession(dbc, s.sessions, learnerID, sessionID); err != nil {
		return nil, err
	}
	history, err := s.interventions.ListBySessionDesc(dbc, sessionID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return history, nil
}

func (s *interventionService) Stats(dbc dbctx.Context, learnerID uuid.UUID) (*InterventionStats, error) {
	all, err := s.interventions.ListByLearner(dbc, learnerID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	stats := &InterventionStats{
		TypeBreakdown: make(map[types.InterventionType]TypeStats),
	}
	if len(all) == 0 {
		return stats, nil
	}
	stats.TotalInterventions = len(all)

	type bucket struct {
		count, responded, accepted int
		deltaSum                   float64
		deltaCount                 int
	}
	total := bucket{}
	byType := make(map[types.InterventionType]*bucket)

	for _, iv := range all {
		b, ok := byType[iv.Type]
		if !ok {
			b = &bucket{}
			byType[iv.Type] = b
		}
		total.count++
		b.count++
		if iv.Responded {
			total.responded++
			b.responded++
			if iv.Accepted != nil && *iv.Accepted {
				total.accepted++
				b.accepted++
			}
		}
		if delta, ok := iv.Effectiveness(); ok {
			total.deltaSum += delta
			total.deltaCount++
			b.deltaSum += delta
			b.deltaCount++
		}
	}

	stats.ResponseRate = ratio(total.responded, total.count)
	stats.AcceptanceRate = ratio(total.accepted, total.responded)
	if total.deltaCount > 0 {
		stats.EffectivenessScore = total.deltaSum / float64(total.deltaCount)
	}
	for t, b := range byType {
		ts := TypeStats{Count: b.count, AcceptanceRate: ratio(b.accepted, b.responded)}
		if b.deltaCount > 0 {
			ts.EffectivenessScore = b.deltaSum / float64(b.deltaCount)
		}
		stats.TypeBreakdown[t] = ts
	}
	return stats, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
