package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Session is one continuous learning activity window for a learner on a
// course/platform. At most one session per learner is active at any instant;
// starting a new one implicitly closes the old one.
type Session struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"learner_id"`
	CourseURL         string         `gorm:"not null" json:"course_url"`
	CourseName        string         `json:"course_name"`
	Platform          string         `gorm:"not null;default:unknown;index" json:"platform"`
	DeviceInfo        datatypes.JSON `gorm:"type:jsonb" json:"device_info,omitempty"`
	StartTime         time.Time      `gorm:"not null;index" json:"start_time"`
	EndTime           *time.Time     `json:"end_time,omitempty"`
	DurationSeconds   float64        `json:"duration_seconds"`
	IsActive          bool           `gorm:"not null;index" json:"is_active"`
	OverallEngagement *float64       `json:"overall_engagement,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Session) TableName() string { return "session" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
