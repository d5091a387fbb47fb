package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/logger"
	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/types"
)

type AdminTokenRepo interface {
	Create(ctx context.Context, tx *gorm.DB, token *types.AdminToken) (*types.AdminToken, error)
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.AdminToken, error)
	DeleteByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, tx *gorm.DB) error
}

type adminTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdminTokenRepo(db *gorm.DB, baseLog *logger.Logger) AdminTokenRepo {
	repoLog := baseLog.With("repo", "AdminTokenRepo")
	return &adminTokenRepo{db: db, log: repoLog}
}

func (r *adminTokenRepo) Create(ctx context.Context, tx *gorm.DB, token *types.AdminToken) (*types.AdminToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

func (r *adminTokenRepo) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.AdminToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.AdminToken
	if err := transaction.WithContext(ctx).First(&row, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *adminTokenRepo) DeleteByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.AdminToken{}).Error
}

func (r *adminTokenRepo) DeleteExpired(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&types.AdminToken{}).Error
}
