package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/logger"
	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/repos"
	"github.com/veilhq/veil-backend/internal/types"
)

// AuthClaims is what the middleware extracts for downstream handlers.
type AuthClaims struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
}

type AuthService interface {
	Register(ctx context.Context, orgID uuid.UUID, email, password string) (*types.AdminUser, error)
	Login(ctx context.Context, email, password string) (string, error)
	Validate(ctx context.Context, tokenString string) (*AuthClaims, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.AdminUserRepo
	tokenRepo    repos.AdminTokenRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(db *gorm.DB, log *logger.Logger, userRepo repos.AdminUserRepo, tokenRepo repos.AdminTokenRepo, jwtSecretKey string, accessTTL time.Duration) AuthService {
	serviceLog := log.With("service", "AuthService")
	return &authService{
		db:           db,
		log:          serviceLog,
		userRepo:     userRepo,
		tokenRepo:    tokenRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) Register(ctx context.Context, orgID uuid.UUID, email, password string) (*types.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < 8 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &types.AdminUser{
		OrgID:    orgID,
		Email:    email,
		Password: string(hashed),
	}
	return as.userRepo.Create(ctx, nil, user)
}

func (as *authService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return "", pkgerrors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", pkgerrors.ErrUnauthorized
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": user.ID.String(),
		"org": user.OrgID.String(),
		"iat": now.Unix(),
		"exp": now.Add(as.accessTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	if as.tokenRepo != nil {
		_, err = as.tokenRepo.Create(ctx, nil, &types.AdminToken{
			UserID:    user.ID,
			Token:     signed,
			ExpiresAt: now.Add(as.accessTTL),
		})
		if err != nil {
			return "", fmt.Errorf("failed to store session token: %w", err)
		}
	}
	return signed, nil
}

func (as *authService) Validate(ctx context.Context, tokenString string) (*AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return nil, pkgerrors.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, pkgerrors.ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	org, _ := claims["org"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, pkgerrors.ErrUnauthorized
	}
	orgID, err := uuid.Parse(org)
	if err != nil {
		return nil, pkgerrors.ErrUnauthorized
	}
	// Session check: a logged-out or pruned token fails even when the
	// signature is still good.
	if as.tokenRepo != nil {
		row, err := as.tokenRepo.GetByToken(ctx, nil, tokenString)
		if err != nil || row.ExpiresAt.Before(time.Now()) {
			return nil, pkgerrors.ErrUnauthorized
		}
	}
	return &AuthClaims{UserID: userID, OrgID: orgID}, nil
}

func (as *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	if as.tokenRepo == nil {
		return nil
	}
	return as.tokenRepo.DeleteByUserID(ctx, nil, userID)
}
