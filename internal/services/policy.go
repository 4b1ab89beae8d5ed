package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sagelearn/engage-backend/internal/types"
)

// DecisionPolicy is the tunable half of the intervention engine: thresholds,
// the trigger→type mapping, and optional per-context score multipliers. The
// defaults mirror the values the product shipped with; none of them are
// load-bearing business rules, which is why they live here and not in code.
type DecisionPolicy struct {
	CooldownSeconds        int     `yaml:"cooldown_seconds"`
	LowEngagementThreshold float64 `yaml:"low_engagement_threshold"`
	BoredomThreshold       float64 `yaml:"boredom_threshold"`
	InactivityLimitSeconds float64 `yaml:"inactivity_limit_seconds"`

	TypeByTrigger map[types.TriggerReason]types.InterventionType `yaml:"type_by_trigger"`
	DefaultType   types.InterventionType                         `yaml:"default_type"`

	// ContextMultipliers scales raw scores per activity context (e.g. boost
	// "coding", discount "idle"). Empty means scores pass through unchanged.
	ContextMultipliers map[string]float64 `yaml:"context_multipliers"`
}

func DefaultPolicy() DecisionPolicy {
	return DecisionPolicy{
		CooldownSeconds:        180,
		LowEngagementThreshold: 0.3,
		BoredomThreshold:       0.4,
		InactivityLimitSeconds: 90,
		TypeByTrigger: map[types.TriggerReason]types.InterventionType{
			types.TriggerInactivity:    types.InterventionBreak,
			types.TriggerConfusion:     types.InterventionVideo,
			types.TriggerLowEngagement: types.InterventionQuiz,
			types.TriggerScheduled:     types.InterventionReminder,
		},
		DefaultType: types.InterventionResource,
	}
}

// LoadPolicy overlays a YAML file on top of the defaults, so a partial file
// only overrides what it names.
func LoadPolicy(path string) (DecisionPolicy, error) {
	p := DefaultPolicy()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return DefaultPolicy(), fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.validate(); err != nil {
		return DefaultPolicy(), err
	}
	return p, nil
}

func (p DecisionPolicy) validate() error {
	if p.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must be >= 0")
	}
	if p.LowEngagementThreshold < 0 || p.LowEngagementThreshold > 1 {
		return fmt.Errorf("low_engagement_threshold out of range [0,1]")
	}
	if p.BoredomThreshold < p.LowEngagementThreshold || p.BoredomThreshold > 1 {
		return fmt.Errorf("boredom_threshold must be within [low_engagement_threshold,1]")
	}
	for trigger, t := range p.TypeByTrigger {
		if !t.Valid() {
			return fmt.Errorf("type_by_trigger[%s]: unknown intervention type %q", trigger, t)
		}
	}
	if p.DefaultType != "" && !p.DefaultType.Valid() {
		return fmt.Errorf("default_type: unknown intervention type %q", p.DefaultType)
	}
	return nil
}

func (p DecisionPolicy) Cooldown() time.Duration {
	return time.Duration(p.CooldownSeconds) * time.Second
}

// Classify maps an engagement snapshot to a trigger. Precedence: inactivity,
// then confusion, then the score bands, then the oracle's own opinion.
func (p DecisionPolicy) Classify(snap EngagementSnapshot) (types.TriggerReason, bool) {
	switch {
	case snap.IsInactive:
		return types.TriggerInactivity, true
	case strings.EqualFold(snap.Emotion, "confused"):
		return types.TriggerConfusion, true
	case snap.Score < p.LowEngagementThreshold:
		return types.TriggerLowEngagement, true
	case snap.Score < p.BoredomThreshold, strings.EqualFold(snap.Emotion, "bored"):
		return types.TriggerBoredom, true
	case snap.NeedsIntervention:
		return types.TriggerLowEngagement, true
	}
	return "", false
}

// TypeFor picks the intervention type: an explicit oracle suggestion wins,
// then the trigger mapping, then the default.
func (p DecisionPolicy) TypeFor(trigger types.TriggerReason, suggested string) types.InterventionType {
	if s := types.InterventionType(strings.ToLower(strings.TrimSpace(suggested))); s.Valid() {
		return s
	}
	if t, ok := p.TypeByTrigger[trigger]; ok {
		return t
	}
	if p.DefaultType.Valid() {
		return p.DefaultType
	}
	return types.InterventionResource
}

// AdjustedScore applies the context multiplier and clamps to [0,1].
func (p DecisionPolicy) AdjustedScore(score float64, context string) float64 {
	if m, ok := p.ContextMultipliers[strings.ToLower(strings.TrimSpace(context))]; ok {
		score *= m
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
