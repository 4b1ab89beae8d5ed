package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/types"
)

type InterventionRepo interface {
	Create(dbc dbctx.Context, intervention *types.Intervention) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Intervention, error)
	LatestBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.Intervention, error)
	ListBySessionDesc(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Intervention, error)
	// ListByLearner resolves ownership through the owning session.
	ListByLearner(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.Intervention, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
}

type interventionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInterventionRepo(db *gorm.DB, baseLog *logger.Logger) InterventionRepo {
	return &interventionRepo{db: db, log: baseLog.With("repo", "InterventionRepo")}
}

func (r *interventionRepo) Create(dbc dbctx.Context, intervention *types.Intervention) error {
	return dbc.DB(r.db).WithContext(dbc.Context()).Create(intervention).Error
}

func (r *interventionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Intervention, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Intervention
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

func (r *interventionRepo) LatestBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.Intervention, error) {
	if sessionID == uuid.Nil {
		return nil, nil
	}
	var out types.Intervention
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

func (r *interventionRepo) ListBySessionDesc(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Intervention, error) {
	var results []*types.Intervention
	if sessionID == uuid.Nil {
		return results, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("session_id = ?", sessionID).
		Order("timestamp DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *interventionRepo) ListByLearner(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.Intervention, error) {
	var results []*types.Intervention
	if learnerID == uuid.Nil {
		return results, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Joins("JOIN session ON session.id = intervention.session_id").
		Where("session.learner_id = ?", learnerID).
		Order("intervention.timestamp DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *interventionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.Intervention{}).
		Where("id = ?", id).
		Updates(updates).Error
}
