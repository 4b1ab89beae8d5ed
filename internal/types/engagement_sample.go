package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EngagementSample is a single timestamped engagement measurement belonging
// to a session. Samples are write-once; retrieval orders by timestamp, not
// insertion order.
type EngagementSample struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_sample_session_ts" json:"session_id"`
	Timestamp       time.Time      `gorm:"not null;index:idx_sample_session_ts" json:"timestamp"`
	EngagementScore float64        `gorm:"not null" json:"engagement_score"`
	AttentionScore  *float64       `json:"attention_score,omitempty"`
	Emotion         datatypes.JSON `gorm:"type:jsonb" json:"emotion,omitempty"`
	Activity        datatypes.JSON `gorm:"type:jsonb" json:"activity,omitempty"`
	Audio           datatypes.JSON `gorm:"type:jsonb" json:"audio,omitempty"`
	VideoProgress   datatypes.JSON `gorm:"type:jsonb" json:"video_progress,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
}

func (EngagementSample) TableName() string { return "engagement_sample" }

func (s *EngagementSample) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Emotion is the categorical label plus its per-category confidence
// distribution (sums to at most 1).
type Emotion struct {
	Primary      string             `json:"primary"`
	Confidence   float64            `json:"confidence"`
	Distribution map[string]float64 `json:"distribution,omitempty"`
}

type Activity struct {
	MouseMovements  int     `json:"mouseMovements"`
	Keystrokes      int     `json:"keystrokes"`
	Scrolls         int     `json:"scrolls"`
	ClickCount      int     `json:"clickCount"`
	InactiveSeconds float64 `json:"inactiveSeconds"`
}

type Audio struct {
	Speaking           bool    `json:"speaking"`
	SpeakingConfidence float64 `json:"speakingConfidence"`
	BackgroundNoise    float64 `json:"backgroundNoise"`
}

type VideoProgress struct {
	CurrentTime     float64 `json:"currentTime"`
	TotalDuration   float64 `json:"totalDuration"`
	PercentComplete float64 `json:"percentComplete"`
}

// EmotionData decodes the stored emotion payload, returning a neutral label
// when none was recorded.
func (s *EngagementSample) EmotionData() Emotion {
	e := Emotion{Primary: "neutral"}
	if len(s.Emotion) > 0 {
		_ = json.Unmarshal(s.Emotion, &e)
	}
	if e.Primary == "" {
		e.Primary = "neutral"
	}
	return e
}

func (s *EngagementSample) ActivityData() Activity {
	var a Activity
	if len(s.Activity) > 0 {
		_ = json.Unmarshal(s.Activity, &a)
	}
	return a
}

// ToJSONB marshals a payload struct for a jsonb column; nil input stays nil.
func ToJSONB(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
