package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/types"
)

type SubmissionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, submissions []*types.Submission) ([]*types.Submission, error)
	GetByThreadID(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) ([]*types.Submission, error)
	GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.Submission, error)
	CountDistinctHandlesByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (int, error)
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	repoLog := baseLog.With("repo", "SubmissionRepo")
	return &submissionRepo{db: db, log: repoLog}
}

func (r *submissionRepo) Create(ctx context.Context, tx *gorm.DB, submissions []*types.Submission) ([]*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(submissions) == 0 {
		return []*types.Submission{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepo) GetByThreadID(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) ([]*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Submission
	if threadID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *submissionRepo) GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Submission
	if orgID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *submissionRepo) CountDistinctHandlesByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Submission{}).
		Where("org_id = ?", orgID).
		Distinct("handle").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
