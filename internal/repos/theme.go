package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/types"
)

type ThemeRepo interface {
	ReplaceForOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, themes []*types.Theme) ([]*types.Theme, error)
	GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.Theme, error)
}

type themeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThemeRepo(db *gorm.DB, baseLog *logger.Logger) ThemeRepo {
	repoLog := baseLog.With("repo", "ThemeRepo")
	return &themeRepo{db: db, log: repoLog}
}

// ReplaceForOrg swaps the org's theme set for a freshly built one in a
// single transaction so readers never see a half-rebuilt catalog.
func (r *themeRepo) ReplaceForOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, themes []*types.Theme) ([]*types.Theme, error) {
	run := func(transaction *gorm.DB) error {
		if err := transaction.WithContext(ctx).
			Where("org_id = ?", orgID).
			Delete(&types.Theme{}).Error; err != nil {
			return err
		}
		if len(themes) == 0 {
			return nil
		}
		return transaction.WithContext(ctx).Create(&themes).Error
	}
	if tx != nil {
		if err := run(tx); err != nil {
			return nil, err
		}
		return themes, nil
	}
	if err := r.db.WithContext(ctx).Transaction(run); err != nil {
		return nil, err
	}
	return themes, nil
}

func (r *themeRepo) GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.Theme, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Theme
	if orgID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("posts_count DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
