package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/types"
)

type EngagementSampleRepo interface {
	Create(dbc dbctx.Context, sample *types.EngagementSample) error
	LatestBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.EngagementSample, error)
	// RangeBySession returns samples ascending by timestamp, inclusive bounds.
	// A zero from/to leaves that bound open.
	RangeBySession(dbc dbctx.Context, sessionID uuid.UUID, from, to time.Time) ([]*types.EngagementSample, error)
	CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error)
}

type engagementSampleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEngagementSampleRepo(db *gorm.DB, baseLog *logger.Logger) EngagementSampleRepo {
	return &engagementSampleRepo{db: db, log: baseLog.With("repo", "EngagementSampleRepo")}
}

func (r *engagementSampleRepo) Create(dbc dbctx.Context, sample *types.EngagementSample) error {
	return dbc.DB(r.db).WithContext(dbc.Context()).Create(sample).Error
}

func (r *engagementSampleRepo) LatestBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.EngagementSample, error) {
	if sessionID == uuid.Nil {
		return nil, nil
	}
	var out types.EngagementSample
	err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("session_id = ?", sessionID).
		Order("timestamp DESC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *engagementSampleRepo) RangeBySession(dbc dbctx.Context, sessionID uuid.UUID, from, to time.Time) ([]*types.EngagementSample, error) {
	var results []*types.EngagementSample
	if sessionID == uuid.Nil {
		return results, nil
	}
	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("session_id = ?", sessionID)
	if !from.IsZero() {
		q = q.Where("timestamp >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("timestamp <= ?", to)
	}
	if err := q.Order("timestamp ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *engagementSampleRepo) CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	if sessionID == uuid.Nil {
		return 0, nil
	}
	err := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.EngagementSample{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}
