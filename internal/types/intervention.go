package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InterventionType string

const (
	InterventionBreak      InterventionType = "break"
	InterventionQuiz       InterventionType = "quiz"
	InterventionVideo      InterventionType = "video"
	InterventionResource   InterventionType = "resource"
	InterventionReminder   InterventionType = "reminder"
	InterventionMotivation InterventionType = "motivation"
)

func (t InterventionType) Valid() bool {
	switch t {
	case InterventionBreak, InterventionQuiz, InterventionVideo,
		InterventionResource, InterventionReminder, InterventionMotivation:
		return true
	}
	return false
}

type TriggerReason string

const (
	TriggerInactivity    TriggerReason = "inactivity"
	TriggerConfusion     TriggerReason = "confusion"
	TriggerBoredom       TriggerReason = "boredom"
	TriggerLowEngagement TriggerReason = "low_engagement"
	TriggerScheduled     TriggerReason = "scheduled"
	TriggerManual        TriggerReason = "manual"
)

// Intervention is a system-initiated pedagogical prompt shown to a learner.
// The response fields are written exactly once by RecordResponse; the record
// itself is never deleted, even when the owning session has since closed.
type Intervention struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"session_id"`
	Timestamp         time.Time        `gorm:"not null;index" json:"timestamp"`
	Type              InterventionType `gorm:"not null;index" json:"type"`
	Trigger           TriggerReason    `gorm:"not null" json:"trigger"`
	EngagementBefore  *float64         `json:"engagement_before,omitempty"`
	EngagementAfter   *float64         `json:"engagement_after,omitempty"`
	Content           datatypes.JSON   `gorm:"type:jsonb" json:"content,omitempty"`
	Responded         bool             `gorm:"not null;default:false" json:"responded"`
	Accepted          *bool            `json:"accepted,omitempty"`
	CompletionSeconds *float64         `json:"completion_seconds,omitempty"`
	Feedback          *string          `json:"feedback,omitempty"`
	CreatedAt         time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"not null" json:"updated_at"`
}

func (Intervention) TableName() string { return "intervention" }

func (i *Intervention) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Effectiveness is the engagement delta across the intervention, present only
// once both snapshots exist.
func (i *Intervention) Effectiveness() (float64, bool) {
	if i.EngagementBefore == nil || i.EngagementAfter == nil {
		return 0, false
	}
	return *i.EngagementAfter - *i.EngagementBefore, true
}
