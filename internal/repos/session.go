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

// SessionFilter narrows List queries. Zero values mean "no constraint".
type SessionFilter struct {
	Platform     string
	IsActive     *bool
	StartedAfter *time.Time
	EndedBefore  *time.Time
}

type SessionRepo interface {
	Create(dbc dbctx.Context, session *types.Session) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	GetActiveByLearner(dbc dbctx.Context, learnerID uuid.UUID) (*types.Session, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
	List(dbc dbctx.Context, learnerID uuid.UUID, filter SessionFilter, page, limit int) ([]*types.Session, int64, error)
	ListClosedByLearner(dbc dbctx.Context, learnerID uuid.UUID, from, to *time.Time) ([]*types.Session, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, session *types.Session) error {
	return dbc.DB(r.db).WithContext(dbc.Context()).Create(session).Error
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Session
	err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("id = ?", id).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) GetActiveByLearner(dbc dbctx.Context, learnerID uuid.UUID) (*types.Session, error) {
	if learnerID == uuid.Nil {
		return nil, nil
	}
	var out types.Session
	err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("learner_id = ? AND is_active = ?", learnerID, true).
		Order("start_time DESC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.Session{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sessionRepo) List(dbc dbctx.Context, learnerID uuid.UUID, filter SessionFilter, page, limit int) ([]*types.Session, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.Session{}).
		Where("learner_id = ?", learnerID)
	if filter.Platform != "" {
		q = q.Where("platform = ?", filter.Platform)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	if filter.StartedAfter != nil {
		q = q.Where("start_time >= ?", *filter.StartedAfter)
	}
	if filter.EndedBefore != nil {
		q = q.Where("end_time <= ?", *filter.EndedBefore)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.Session
	if err := q.Order("start_time DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *sessionRepo) ListClosedByLearner(dbc dbctx.Context, learnerID uuid.UUID, from, to *time.Time) ([]*types.Session, error) {
	var results []*types.Session
	if learnerID == uuid.Nil {
		return results, nil
	}
	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("learner_id = ? AND is_active = ?", learnerID, false)
	if from != nil {
		q = q.Where("start_time >= ?", *from)
	}
	if to != nil {
		q = q.Where("end_time <= ?", *to)
	}
	if err := q.Order("start_time ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
