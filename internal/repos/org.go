package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/logger"
	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/types"
)

type OrgRepo interface {
	Create(ctx context.Context, tx *gorm.DB, org *types.Org) (*types.Org, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Org, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Org, error)
	UpdateKThreshold(ctx context.Context, tx *gorm.DB, id uuid.UUID, k int) error
	BumpKeyVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Org, error)
}

type orgRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrgRepo(db *gorm.DB, baseLog *logger.Logger) OrgRepo {
	repoLog := baseLog.With("repo", "OrgRepo")
	return &orgRepo{db: db, log: repoLog}
}

func (r *orgRepo) Create(ctx context.Context, tx *gorm.DB, org *types.Org) (*types.Org, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if org.KThreshold <= 0 {
		org.KThreshold = 5
	}
	if org.KeyVersion <= 0 {
		org.KeyVersion = 1
	}
	if err := transaction.WithContext(ctx).Create(org).Error; err != nil {
		return nil, err
	}
	return org, nil
}

func (r *orgRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Org, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var org types.Org
	if err := transaction.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *orgRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Org, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var org types.Org
	if err := transaction.WithContext(ctx).First(&org, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *orgRepo) UpdateKThreshold(ctx context.Context, tx *gorm.DB, id uuid.UUID, k int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if k < 2 {
		return pkgerrors.ErrInvalidArgument
	}
	return transaction.WithContext(ctx).
		Model(&types.Org{}).
		Where("id = ?", id).
		Update("k_threshold", k).Error
}

func (r *orgRepo) BumpKeyVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Org{}).
		Where("id = ?", id).
		Update("key_version", gorm.Expr("key_version + 1")).Error; err != nil {
		return 0, err
	}
	var org types.Org
	if err := transaction.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return 0, err
	}
	return org.KeyVersion, nil
}

func (r *orgRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Org, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Org
	if err := transaction.WithContext(ctx).Order("created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
