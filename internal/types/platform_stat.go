package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlatformStat is a derived per-(learner, platform) rollup maintained
// incrementally on session close. It is a view over closed sessions and can
// always be rebuilt from them.
type PlatformStat struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stat_learner_platform" json:"learner_id"`
	Platform             string    `gorm:"not null;uniqueIndex:idx_stat_learner_platform" json:"platform"`
	SessionCount         int64     `gorm:"not null" json:"session_count"`
	TotalDurationSeconds float64   `gorm:"not null" json:"total_duration_seconds"`
	AverageEngagement    float64   `gorm:"not null" json:"average_engagement"`
	// EngagedCount is the number of sessions that contributed to the running
	// engagement mean; sessions that never produced telemetry are counted in
	// SessionCount but not here.
	EngagedCount int64     `gorm:"not null" json:"engaged_count"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (PlatformStat) TableName() string { return "platform_stat" }

func (p *PlatformStat) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
