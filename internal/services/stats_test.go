package services

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sagelearn/engage-backend/internal/types"
)

func closeSessionWith(t *testing.T, env *testEnv, learnerID uuid.UUID, platform string, duration float64, engagement *float64) *types.Session {
	t.Helper()
	now := time.Now().UTC()
	end := now.Add(-time.Minute)
	session := &types.Session{
		LearnerID:         learnerID,
		CourseURL:         "https://example.com/course",
		Platform:          platform,
		StartTime:         end.Add(-time.Duration(duration) * time.Second),
		EndTime:           &end,
		DurationSeconds:   duration,
		IsActive:          false,
		OverallEngagement: engagement,
	}
	if err := env.sessions.Create(env.dbc(), session); err != nil {
		t.Fatalf("create closed session: %v", err)
	}
	return session
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFoldSessionRunningMean(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()

	scores := []float64{0.2, 0.6, 0.7}
	for _, score := range scores {
		session := closeSessionWith(t, env, learnerID, "youtube", 600, floatPtr(score))
		if err := env.statsSvc.FoldSession(env.dbc(), session); err != nil {
			t.Fatalf("fold: %v", err)
		}
	}
	// One session without telemetry bumps counts but not the average.
	silent := closeSessionWith(t, env, learnerID, "youtube", 300, nil)
	if err := env.statsSvc.FoldSession(env.dbc(), silent); err != nil {
		t.Fatalf("fold silent: %v", err)
	}

	stat, err := env.stats.Get(env.dbc(), learnerID, "youtube")
	if err != nil {
		t.Fatalf("get stat: %v", err)
	}
	if stat == nil {
		t.Fatal("stat row missing")
	}
	if stat.SessionCount != 4 {
		t.Fatalf("session count = %d, want 4", stat.SessionCount)
	}
	if stat.EngagedCount != 3 {
		t.Fatalf("engaged count = %d, want 3", stat.EngagedCount)
	}
	if !almostEqual(stat.TotalDurationSeconds, 2100) {
		t.Fatalf("total duration = %v, want 2100", stat.TotalDurationSeconds)
	}
	if !almostEqual(stat.AverageEngagement, 0.5) {
		t.Fatalf("running mean = %v, want 0.5", stat.AverageEngagement)
	}
}

func TestFoldSessionRejectsActive(t *testing.T) {
	env := newTestEnv(t)
	session := &types.Session{
		LearnerID: uuid.New(),
		CourseURL: "https://example.com",
		Platform:  "youtube",
		StartTime: time.Now().UTC(),
		IsActive:  true,
	}
	if err := env.statsSvc.FoldSession(env.dbc(), session); err == nil {
		t.Fatal("expected error folding an active session")
	}
}

func TestSessionStatsAcrossPlatforms(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()

	for _, s := range []struct {
		platform   string
		engagement float64
	}{
		{"youtube", 0.8},
		{"youtube", 0.6},
		{"coursera", 0.4},
	} {
		session := closeSessionWith(t, env, learnerID, s.platform, 600, floatPtr(s.engagement))
		if err := env.statsSvc.FoldSession(env.dbc(), session); err != nil {
			t.Fatalf("fold: %v", err)
		}
	}

	stats, err := env.statsSvc.SessionStats(env.dbc(), learnerID, nil, nil)
	if err != nil {
		t.Fatalf("session stats: %v", err)
	}
	if stats.TotalSessions != 3 {
		t.Fatalf("total sessions = %d, want 3", stats.TotalSessions)
	}
	if !almostEqual(stats.Platforms["youtube"].AverageEngagement, 0.7) {
		t.Fatalf("youtube average = %v, want 0.7", stats.Platforms["youtube"].AverageEngagement)
	}
	if !almostEqual(stats.Platforms["coursera"].AverageEngagement, 0.4) {
		t.Fatalf("coursera average = %v, want 0.4", stats.Platforms["coursera"].AverageEngagement)
	}
	// Overall average weights per engaged session, not per platform.
	if !almostEqual(stats.AverageEngagement, 0.6) {
		t.Fatalf("overall average = %v, want 0.6", stats.AverageEngagement)
	}
}

func TestSessionStatsWithDateRange(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()

	old := closeSessionWith(t, env, learnerID, "youtube", 600, floatPtr(0.9))
	oldStart := time.Now().UTC().Add(-48 * time.Hour)
	oldEnd := oldStart.Add(10 * time.Minute)
	if err := env.sessions.UpdateFields(env.dbc(), old.ID, map[string]any{
		"start_time": oldStart,
		"end_time":   oldEnd,
	}); err != nil {
		t.Fatalf("backdate session: %v", err)
	}
	closeSessionWith(t, env, learnerID, "youtube", 300, floatPtr(0.5))

	from := time.Now().UTC().Add(-24 * time.Hour)
	stats, err := env.statsSvc.SessionStats(env.dbc(), learnerID, &from, nil)
	if err != nil {
		t.Fatalf("session stats: %v", err)
	}
	if stats.TotalSessions != 1 {
		t.Fatalf("total sessions in range = %d, want 1", stats.TotalSessions)
	}
	if !almostEqual(stats.AverageEngagement, 0.5) {
		t.Fatalf("range average = %v, want 0.5", stats.AverageEngagement)
	}
}

func TestRebuildMatchesIncrementalFold(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()

	scores := []float64{0.3, 0.5, 0.9}
	for _, score := range scores {
		session := closeSessionWith(t, env, learnerID, "youtube", 450, floatPtr(score))
		if err := env.statsSvc.FoldSession(env.dbc(), session); err != nil {
			t.Fatalf("fold: %v", err)
		}
	}
	before, err := env.statsSvc.SessionStats(env.dbc(), learnerID, nil, nil)
	if err != nil {
		t.Fatalf("stats before rebuild: %v", err)
	}

	if err := env.statsSvc.Rebuild(env.dbc(), learnerID); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	after, err := env.statsSvc.SessionStats(env.dbc(), learnerID, nil, nil)
	if err != nil {
		t.Fatalf("stats after rebuild: %v", err)
	}

	if before.TotalSessions != after.TotalSessions {
		t.Fatalf("session count drifted: %d vs %d", before.TotalSessions, after.TotalSessions)
	}
	if !almostEqual(before.AverageEngagement, after.AverageEngagement) {
		t.Fatalf("average drifted: %v vs %v", before.AverageEngagement, after.AverageEngagement)
	}
	if !almostEqual(before.TotalDurationSeconds, after.TotalDurationSeconds) {
		t.Fatalf("duration drifted: %v vs %v", before.TotalDurationSeconds, after.TotalDurationSeconds)
	}
}
