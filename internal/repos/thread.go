package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veilhq/veil-backend/internal/logger"
	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/types"
)

type ThreadRepo interface {
	Create(ctx context.Context, tx *gorm.DB, thread *types.FeedbackThread) (*types.FeedbackThread, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.FeedbackThread, error)
	GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.FeedbackThread, error)
	RecordContribution(ctx context.Context, tx *gorm.DB, threadID uuid.UUID, handle string) (int, error)
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, baseLog *logger.Logger) ThreadRepo {
	repoLog := baseLog.With("repo", "ThreadRepo")
	return &threadRepo{db: db, log: repoLog}
}

func (r *threadRepo) Create(ctx context.Context, tx *gorm.DB, thread *types.FeedbackThread) (*types.FeedbackThread, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(thread).Error; err != nil {
		return nil, err
	}
	return thread, nil
}

func (r *threadRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.FeedbackThread, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var thread types.FeedbackThread
	if err := transaction.WithContext(ctx).First(&thread, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepo) GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.FeedbackThread, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.FeedbackThread
	if orgID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// RecordContribution registers handle as a contributor to the thread and
// returns the participant count as of this write, read inside the same
// transaction. A submission that pushes the count to the org threshold is
// therefore visible to the very next evaluation, not eventually. Repeat
// contributions by the same handle leave the count unchanged.
func (r *threadRepo) RecordContribution(ctx context.Context, tx *gorm.DB, threadID uuid.UUID, handle string) (int, error) {
	run := func(transaction *gorm.DB) (int, error) {
		res := transaction.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&types.ThreadParticipant{ThreadID: threadID, Handle: handle})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected > 0 {
			if err := transaction.WithContext(ctx).
				Model(&types.FeedbackThread{}).
				Where("id = ?", threadID).
				Update("participant_count", gorm.Expr("participant_count + 1")).Error; err != nil {
				return 0, err
			}
		}
		var thread types.FeedbackThread
		if err := transaction.WithContext(ctx).First(&thread, "id = ?", threadID).Error; err != nil {
			return 0, err
		}
		return thread.ParticipantCount, nil
	}

	if tx != nil {
		return run(tx)
	}
	var count int
	err := r.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var txErr error
		count, txErr = run(transaction)
		return txErr
	})
	return count, err
}
