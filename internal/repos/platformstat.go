package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/types"
)

type PlatformStatRepo interface {
	Get(dbc dbctx.Context, learnerID uuid.UUID, platform string) (*types.PlatformStat, error)
	Save(dbc dbctx.Context, stat *types.PlatformStat) error
	ListByLearner(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.PlatformStat, error)
	DeleteByLearner(dbc dbctx.Context, learnerID uuid.UUID) error
}

type platformStatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlatformStatRepo(db *gorm.DB, baseLog *logger.Logger) PlatformStatRepo {
	return &platformStatRepo{db: db, log: baseLog.With("repo", "PlatformStatRepo")}
}

func (r *platformStatRepo) Get(dbc dbctx.Context, learnerID uuid.UUID, platform string) (*types.PlatformStat, error) {
	if learnerID == uuid.Nil {
		return nil, nil
	}
	var out types.PlatformStat
	err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("learner_id = ? AND platform = ?", learnerID, platform).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *platformStatRepo) Save(dbc dbctx.Context, stat *types.PlatformStat) error {
	return dbc.DB(r.db).WithContext(dbc.Context()).Save(stat).Error
}

func (r *platformStatRepo) ListByLearner(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.PlatformStat, error) {
	var results []*types.PlatformStat
	if learnerID == uuid.Nil {
		return results, nil
	}
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("learner_id = ?", learnerID).
		Order("platform ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *platformStatRepo) DeleteByLearner(dbc dbctx.Context, learnerID uuid.UUID) error {
	if learnerID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Where("learner_id = ?", learnerID).
		Delete(&types.PlatformStat{}).Error
}
