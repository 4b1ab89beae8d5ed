package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sagelearn/engage-backend/internal/clients/scoring"
	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/pkg/keylock"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/repos"
	"github.com/sagelearn/engage-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Session{},
		&types.EngagementSample{},
		&types.Intervention{},
		&types.LearningResource{},
		&types.PlatformStat{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// testEnv bundles everything a service test needs over one in-memory DB.
type testEnv struct {
	db            *gorm.DB
	log           *logger.Logger
	sessions      repos.SessionRepo
	samples       repos.EngagementSampleRepo
	interventions repos.InterventionRepo
	stats         repos.PlatformStatRepo
	resources     repos.LearningResourceRepo
	locks         *keylock.KeyedMutex

	statsSvc     StatsService
	sessionSvc   SessionService
	telemetrySvc TelemetryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	env := &testEnv{
		db:            db,
		log:           log,
		sessions:      repos.NewSessionRepo(db, log),
		samples:       repos.NewEngagementSampleRepo(db, log),
		interventions: repos.NewInterventionRepo(db, log),
		stats:         repos.NewPlatformStatRepo(db, log),
		resources:     repos.NewLearningResourceRepo(db, log),
		locks:         keylock.New(),
	}
	env.statsSvc = NewStatsService(db, log, env.sessions, env.stats)
	env.sessionSvc = NewSessionService(db, log, env.sessions, env.samples, env.interventions, env.statsSvc, env.locks)
	env.telemetrySvc = NewTelemetryService(db, log, env.sessions, env.samples, nil, nil, DefaultPolicy())
	return env
}

func (e *testEnv) interventionSvc(oracle scoring.Oracle, policy DecisionPolicy) InterventionService {
	return NewInterventionService(e.db, e.log, e.sessions, e.samples, e.interventions, e.resources, oracle, policy, e.locks)
}

func (e *testEnv) dbc() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}

func (e *testEnv) startSession(t *testing.T, learnerID uuid.UUID, platform string) *types.Session {
	t.Helper()
	result, err := e.sessionSvc.Start(e.dbc(), learnerID, SessionStartInput{
		CourseURL:  "https://youtube.com/watch?v=abc",
		CourseName: "calculus",
		Platform:   platform,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return result.Session
}

func (e *testEnv) appendSample(t *testing.T, learnerID, sessionID uuid.UUID, score float64, at time.Time) *types.EngagementSample {
	t.Helper()
	sample, err := e.telemetrySvc.Append(e.dbc(), learnerID, SampleInput{
		SessionID:       sessionID,
		Timestamp:       &at,
		EngagementScore: &score,
	})
	if err != nil {
		t.Fatalf("append sample (score=%v): %v", score, err)
	}
	return sample
}

// stubOracle returns a fixed analysis or error.
type stubOracle struct {
	analysis *scoring.Analysis
	err      error
	calls    int
}

func (o *stubOracle) ScoreEngagement(ctx context.Context, learnerID uuid.UUID) (*scoring.Analysis, error) {
	o.calls++
	return o.analysis, o.err
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
