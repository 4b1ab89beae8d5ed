package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sagelearn/engage-backend/internal/platform/apierr"
	"github.com/sagelearn/engage-backend/internal/types"
)

func TestAppendDefaultsToNeutralScore(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()
	session := env.startSession(t, learnerID, "youtube")

	sample, err := env.telemetrySvc.Append(env.dbc(), learnerID, SampleInput{SessionID: session.ID})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if sample.EngagementScore != 0.5 {
		t.Fatalf("default score = %v, want 0.5", sample.EngagementScore)
	}
	if sample.Timestamp.IsZero() {
		t.Fatal("server-side timestamp not set")
	}
}

func TestAppendValidatesScoreRange(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()
	session := env.startSession(t, learnerID, "youtube")

	cases := []struct {
		name       string
		engagement *float64
		attention  *float64
	}{
		{"engagement above one", floatPtr(1.5), nil},
		{"engagement negative", floatPtr(-0.1), nil},
		{"attention above one", floatPtr(0.5), floatPtr(2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.telemetrySvc.Append(env.dbc(), learnerID, SampleInput{
				SessionID:       session.ID,
				EngagementScore: tc.engagement,
				AttentionScore:  tc.attention,
			})
			if !apierr.IsCode(err, apierr.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAppendToClosedSessionRejected(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()
	session := env.startSession(t, learnerID, "youtube")
	if _, err := env.sessionSvc.End(env.dbc(), learnerID, session.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	_, err := env.telemetrySvc.Append(env.dbc(), learnerID, SampleInput{SessionID: session.ID})
	if !apierr.IsCode(err, apierr.CodeSessionNotActive) {
		t.Fatalf("expected session_not_active, got %v", err)
	}
}

func TestRangeOrdersOutOfOrderAppends(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()
	session := env.startSession(t, learnerID, "youtube")

	base := time.Now().UTC().Add(-time.Minute)
	// Deliberately append newest first.
	env.appendSample(t, learnerID, session.ID, 0.3, base.Add(20*time.Second))
	env.appendSample(t, learnerID, session.ID, 0.1, base)
	env.appendSample(t, learnerID, session.ID, 0.2, base.Add(10*time.Second))

	got, err := env.telemetrySvc.Range(env.dbc(), learnerID, session.ID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d samples, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("samples out of order at %d: %v before %v", i, got[i].Timestamp, got[i-1].Timestamp)
		}
	}
	if got[0].EngagementScore != 0.1 || got[2].EngagementScore != 0.3 {
		t.Fatalf("unexpected ordering: %v, %v, %v",
			got[0].EngagementScore, got[1].EngagementScore, got[2].EngagementScore)
	}
}

func TestDecimate(t *testing.T) {
	mk := func(n int) []*types.EngagementSample {
		out := make([]*types.EngagementSample, n)
		for i := range out {
			out[i] = &types.EngagementSample{EngagementScore: float64(i)}
		}
		return out
	}

	cases := []struct {
		name   string
		n      int
		target int
		want   int
	}{
		{"fewer than target", 5, 10, 5},
		{"equal to target", 10, 10, 10},
		{"downsampled", 100, 10, 10},
		{"large series", 997, 50, 50},
		{"target one", 10, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := mk(tc.n)
			got := decimate(in, tc.target)
			if len(got) != tc.want {
				t.Fatalf("len = %d, want %d", len(got), tc.want)
			}
			if got[0].EngagementScore != 0 {
				t.Fatalf("first sample dropped: %v", got[0].EngagementScore)
			}
			// Picked indexes must be non-decreasing.
			for i := 1; i < len(got); i++ {
				if got[i].EngagementScore < got[i-1].EngagementScore {
					t.Fatalf("indexes not monotonic at %d", i)
				}
			}
			// Deterministic for the same input shape.
			again := decimate(mk(tc.n), tc.target)
			for i := range got {
				if got[i].EngagementScore != again[i].EngagementScore {
					t.Fatalf("non-deterministic pick at %d", i)
				}
			}
		})
	}
}

func TestTimelineFullSeriesWhenUnbounded(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()
	session := env.startSession(t, learnerID, "youtube")
	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 7; i++ {
		env.appendSample(t, learnerID, session.ID, 0.5, base.Add(time.Duration(i)*time.Second))
	}

	full, err := env.telemetrySvc.Timeline(env.dbc(), learnerID, session.ID, 0)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(full) != 7 {
		t.Fatalf("full timeline has %d samples, want 7", len(full))
	}

	sampled, err := env.telemetrySvc.Timeline(env.dbc(), learnerID, session.ID, 3)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(sampled) != 3 {
		t.Fatalf("sampled timeline has %d samples, want 3", len(sampled))
	}
}

func TestAveragesEmptySession(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()
	session := env.startSession(t, learnerID, "youtube")

	averages, err := env.telemetrySvc.Averages(env.dbc(), learnerID, session.ID)
	if err != nil {
		t.Fatalf("averages: %v", err)
	}
	if averages != nil {
		t.Fatalf("expected nil averages for empty session, got %+v", averages)
	}
}

func TestAveragesHistogram(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()
	session := env.startSession(t, learnerID, "youtube")

	base := time.Now().UTC().Add(-time.Minute)
	emotions := []string{"happy", "happy", "confused"}
	for i, emotion := range emotions {
		ts := base.Add(time.Duration(i) * time.Second)
		score := 0.6
		if _, err := env.telemetrySvc.Append(env.dbc(), learnerID, SampleInput{
			SessionID:       session.ID,
			Timestamp:       &ts,
			EngagementScore: &score,
			Emotion:         &types.Emotion{Primary: emotion, Confidence: 0.9},
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	averages, err := env.telemetrySvc.Averages(env.dbc(), learnerID, session.ID)
	if err != nil {
		t.Fatalf("averages: %v", err)
	}
	if averages.MeanEngagement != 0.6 {
		t.Fatalf("mean = %v, want 0.6", averages.MeanEngagement)
	}
	if averages.EmotionHistogram["happy"] != 2 || averages.EmotionHistogram["confused"] != 1 {
		t.Fatalf("histogram = %v", averages.EmotionHistogram)
	}
}

func TestCurrentFallsBackToDefault(t *testing.T) {
	env := newTestEnv(t)
	learnerID := uuid.New()
	session := env.startSession(t, learnerID, "youtube")

	snap, err := env.telemetrySvc.Current(env.dbc(), learnerID, session.ID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if snap.Source != snapshotSourceDefault {
		t.Fatalf("source = %q, want %q", snap.Source, snapshotSourceDefault)
	}
	if snap.Score != 0.5 || snap.Emotion != "neutral" {
		t.Fatalf("default snapshot = %+v", snap)
	}
}
