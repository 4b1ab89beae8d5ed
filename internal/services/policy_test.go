package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sagelearn/engage-backend/internal/types"
)

func TestClassify(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		name    string
		snap    EngagementSnapshot
		trigger types.TriggerReason
		need    bool
	}{
		{"engaged", EngagementSnapshot{Score: 0.8, Emotion: "happy"}, "", false},
		{"inactive wins over score", EngagementSnapshot{Score: 0.9, IsInactive: true}, types.TriggerInactivity, true},
		{"confused", EngagementSnapshot{Score: 0.7, Emotion: "confused"}, types.TriggerConfusion, true},
		{"confused case-insensitive", EngagementSnapshot{Score: 0.7, Emotion: "Confused"}, types.TriggerConfusion, true},
		{"low engagement", EngagementSnapshot{Score: 0.25, Emotion: "neutral"}, types.TriggerLowEngagement, true},
		{"boredom band", EngagementSnapshot{Score: 0.35, Emotion: "neutral"}, types.TriggerBoredom, true},
		{"bored emotion", EngagementSnapshot{Score: 0.7, Emotion: "bored"}, types.TriggerBoredom, true},
		{"oracle opinion", EngagementSnapshot{Score: 0.6, Emotion: "neutral", NeedsIntervention: true}, types.TriggerLowEngagement, true},
		{"boundary at low threshold", EngagementSnapshot{Score: 0.3, Emotion: "neutral"}, types.TriggerBoredom, true},
		{"boundary at boredom threshold", EngagementSnapshot{Score: 0.4, Emotion: "neutral"}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trigger, need := policy.Classify(tc.snap)
			if need != tc.need || trigger != tc.trigger {
				t.Fatalf("Classify(%+v) = (%q, %v), want (%q, %v)",
					tc.snap, trigger, need, tc.trigger, tc.need)
			}
		})
	}
}

func TestTypeFor(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		name      string
		trigger   types.TriggerReason
		suggested string
		want      types.InterventionType
	}{
		{"valid suggestion wins", types.TriggerInactivity, "video", types.InterventionVideo},
		{"suggestion normalized", types.TriggerInactivity, "  Break ", types.InterventionBreak},
		{"invalid suggestion ignored", types.TriggerInactivity, "nap", types.InterventionBreak},
		{"mapped trigger", types.TriggerConfusion, "", types.InterventionVideo},
		{"unmapped trigger uses default", types.TriggerManual, "", types.InterventionResource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.TypeFor(tc.trigger, tc.suggested); got != tc.want {
				t.Fatalf("TypeFor(%q, %q) = %q, want %q", tc.trigger, tc.suggested, got, tc.want)
			}
		})
	}
}

func TestAdjustedScore(t *testing.T) {
	policy := DefaultPolicy()
	policy.ContextMultipliers = map[string]float64{"coding": 1.5, "idle": 0.5}

	cases := []struct {
		name    string
		score   float64
		context string
		want    float64
	}{
		{"no context passthrough", 0.6, "", 0.6},
		{"boosted and clamped", 0.8, "coding", 1},
		{"discounted", 0.8, "idle", 0.4},
		{"unknown context passthrough", 0.7, "reading", 0.7},
		{"never below zero", -0.2, "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.AdjustedScore(tc.score, tc.context); got != tc.want {
				t.Fatalf("AdjustedScore(%v, %q) = %v, want %v", tc.score, tc.context, got, tc.want)
			}
		})
	}
}

func TestLoadPolicyPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	raw := []byte("cooldown_seconds: 60\nlow_engagement_threshold: 0.25\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if policy.CooldownSeconds != 60 {
		t.Fatalf("cooldown = %d, want 60", policy.CooldownSeconds)
	}
	if policy.LowEngagementThreshold != 0.25 {
		t.Fatalf("low threshold = %v, want 0.25", policy.LowEngagementThreshold)
	}
	// Unset keys keep their defaults.
	if policy.BoredomThreshold != 0.4 {
		t.Fatalf("boredom threshold = %v, want default 0.4", policy.BoredomThreshold)
	}
	if policy.DefaultType != types.InterventionResource {
		t.Fatalf("default type = %q, want resource", policy.DefaultType)
	}
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"negative cooldown", "cooldown_seconds: -1\n"},
		{"threshold out of range", "low_engagement_threshold: 1.5\n"},
		{"inverted bands", "low_engagement_threshold: 0.5\nboredom_threshold: 0.2\n"},
		{"unknown type", "default_type: nap\n"},
		{"malformed yaml", "cooldown_seconds: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o600); err != nil {
				t.Fatalf("write policy file: %v", err)
			}
			if _, err := LoadPolicy(path); err == nil {
				t.Fatal("expected error for invalid policy")
			}
		})
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
