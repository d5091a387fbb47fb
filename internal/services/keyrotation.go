package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/audit"
	"github.com/veilhq/veil-backend/internal/logger"
	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/repos"
	"github.com/veilhq/veil-backend/internal/types"

	"github.com/google/uuid"
)

// KeyRotationService owns the master key and everything derived from it.
// Org pseudonym salts are HKDF expansions of (master key, org id, key
// version), so no salt is ever stored; bumping the version rotates the salt
// and every event lands on the audit trail.
type KeyRotationService interface {
	OrgSalt(ctx context.Context, org *types.Org) (string, error)
	Rotate(ctx context.Context, orgID uuid.UUID, userID *uuid.UUID) (int, error)
	History(ctx context.Context, orgID uuid.UUID, limit int) []audit.Event
}

type keyRotationService struct {
	db        *gorm.DB
	log       *logger.Logger
	orgRepo   repos.OrgRepo
	trail     audit.Trail
	masterKey []byte
}

func NewKeyRotationService(db *gorm.DB, log *logger.Logger, orgRepo repos.OrgRepo, trail audit.Trail, masterKeyHex string) (KeyRotationService, error) {
	serviceLog := log.With("service", "KeyRotationService")
	key, err := hex.DecodeString(strings.TrimSpace(masterKeyHex))
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("master key too short: %d bytes, need 32", len(key))
	}
	return &keyRotationService{
		db:        db,
		log:       serviceLog,
		orgRepo:   orgRepo,
		trail:     trail,
		masterKey: key,
	}, nil
}

const orgSaltBytes = 32

func (s *keyRotationService) OrgSalt(ctx context.Context, org *types.Org) (string, error) {
	if org == nil || org.ID == uuid.Nil {
		return "", pkgerrors.ErrMissingOrgSalt
	}
	if len(s.masterKey) == 0 {
		return "", pkgerrors.ErrMissingOrgSalt
	}
	info := fmt.Sprintf("veil-pseudonym-salt|%s|v%d", org.ID, org.KeyVersion)
	r := hkdf.New(sha256.New, s.masterKey, []byte(org.ID.String()), []byte(info))
	salt := make([]byte, orgSaltBytes)
	if _, err := io.ReadFull(r, salt); err != nil {
		return "", fmt.Errorf("salt derivation failed: %w", err)
	}
	s.trail.Append(audit.Event{
		Type:    audit.EventKeyAccess,
		OrgID:   org.ID,
		Details: map[string]any{"key_version": org.KeyVersion},
	})
	return hex.EncodeToString(salt), nil
}

// Rotate bumps the org's key version. Handles derived before the bump
// become unlinkable to new ones, same as a rotation-window boundary, which
// is the point of rotating.
func (s *keyRotationService) Rotate(ctx context.Context, orgID uuid.UUID, userID *uuid.UUID) (int, error) {
	s.trail.Append(audit.Event{
		Type:   audit.EventRotationInitiated,
		OrgID:  orgID,
		UserID: userID,
	})
	version, err := s.orgRepo.BumpKeyVersion(ctx, nil, orgID)
	if err != nil {
		s.trail.Append(audit.Event{
			Type:   audit.EventRotationFailed,
			OrgID:  orgID,
			UserID: userID,
			Error:  err.Error(),
		})
		return 0, fmt.Errorf("key rotation failed: %w", err)
	}
	s.trail.Append(audit.Event{
		Type:    audit.EventRotationSuccess,
		OrgID:   orgID,
		UserID:  userID,
		Details: map[string]any{"key_version": version},
	})
	s.log.Info("rotated org key", "org_id", orgID, "key_version", version)
	return version, nil
}

func (s *keyRotationService) History(ctx context.Context, orgID uuid.UUID, limit int) []audit.Event {
	return s.trail.Query(audit.Filter{OrgID: orgID, Limit: limit})
}
