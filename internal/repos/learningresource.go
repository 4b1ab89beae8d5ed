package repos

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/types"
)

type LearningResourceRepo interface {
	// FindFirstTagged returns the first active resource of the given type
	// whose tags contain tag (case-insensitive), or nil.
	FindFirstTagged(dbc dbctx.Context, resourceType, tag string) (*types.LearningResource, error)
	FindTagged(dbc dbctx.Context, resourceTypes []string, tag string, limit int) ([]*types.LearningResource, error)
	List(dbc dbctx.Context, resourceType string, tags []string, page, limit int) ([]*types.LearningResource, int64, error)
	Create(dbc dbctx.Context, resource *types.LearningResource) error
}

type learningResourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearningResourceRepo(db *gorm.DB, baseLog *logger.Logger) LearningResourceRepo {
	return &learningResourceRepo{db: db, log: baseLog.With("repo", "LearningResourceRepo")}
}

func (r *learningResourceRepo) FindFirstTagged(dbc dbctx.Context, resourceType, tag string) (*types.LearningResource, error) {
	var out types.LearningResource
	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("resource_type = ? AND active = ?", resourceType, true)
	if tag = strings.TrimSpace(tag); tag != "" {
		q = q.Where("LOWER(tags) LIKE ?", "%"+strings.ToLower(tag)+"%")
	}
	err := q.First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *learningResourceRepo) FindTagged(dbc dbctx.Context, resourceTypes []string, tag string, limit int) ([]*types.LearningResource, error) {
	var results []*types.LearningResource
	if len(resourceTypes) == 0 {
		return results, nil
	}
	if limit < 1 {
		limit = 2
	}
	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("resource_type IN ? AND active = ?", resourceTypes, true)
	if tag = strings.TrimSpace(tag); tag != "" {
		q = q.Where("LOWER(tags) LIKE ?", "%"+strings.ToLower(tag)+"%")
	}
	if err := q.Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *learningResourceRepo) List(dbc dbctx.Context, resourceType string, tags []string, page, limit int) ([]*types.LearningResource, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	q := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&types.LearningResource{}).
		Where("active = ?", true)
	if resourceType != "" {
		q = q.Where("resource_type = ?", resourceType)
	}
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			q = q.Where("LOWER(tags) LIKE ?", "%"+strings.ToLower(tag)+"%")
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.LearningResource
	if err := q.Order("title ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *learningResourceRepo) Create(dbc dbctx.Context, resource *types.LearningResource) error {
	return dbc.DB(r.db).WithContext(dbc.Context()).Create(resource).Error
}
