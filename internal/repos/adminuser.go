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

type AdminUserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, user *types.AdminUser) (*types.AdminUser, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AdminUser, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.AdminUser, error)
}

type adminUserRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdminUserRepo(db *gorm.DB, baseLog *logger.Logger) AdminUserRepo {
	repoLog := baseLog.With("repo", "AdminUserRepo")
	return &adminUserRepo{db: db, log: repoLog}
}

func (r *adminUserRepo) Create(ctx context.Context, tx *gorm.DB, user *types.AdminUser) (*types.AdminUser, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *adminUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AdminUser, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var user types.AdminUser
	if err := transaction.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *adminUserRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.AdminUser, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var user types.AdminUser
	if err := transaction.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
