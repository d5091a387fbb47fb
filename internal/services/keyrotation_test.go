package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/veilhq/veil-backend/internal/audit"
	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/types"
)

func setupRotation(t *testing.T) (KeyRotationService, *fakeOrgRepo, *audit.MemoryTrail, *types.Org) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	orgRepo := newFakeOrgRepo()
	trail := audit.NewMemoryTrail(100)
	org, _ := orgRepo.Create(context.Background(), nil, &types.Org{Slug: "acme", Name: "Acme"})
	svc, err := NewKeyRotationService(nil, log, orgRepo, trail, testMasterKey)
	if err != nil {
		t.Fatalf("NewKeyRotationService: %v", err)
	}
	return svc, orgRepo, trail, org
}

func TestNewKeyRotationServiceRejectsWeakKey(t *testing.T) {
	log, _ := logger.New("development")
	if _, err := NewKeyRotationService(nil, log, newFakeOrgRepo(), audit.NewMemoryTrail(10), "abcd"); err == nil {
		t.Fatal("short master key accepted")
	}
	if _, err := NewKeyRotationService(nil, log, newFakeOrgRepo(), audit.NewMemoryTrail(10), "not-hex"); err == nil {
		t.Fatal("non-hex master key accepted")
	}
}

func TestOrgSaltStableWithinVersion(t *testing.T) {
	svc, _, _, org := setupRotation(t)
	s1, err := svc.OrgSalt(context.Background(), org)
	if err != nil {
		t.Fatalf("OrgSalt: %v", err)
	}
	s2, err := svc.OrgSalt(context.Background(), org)
	if err != nil {
		t.Fatalf("OrgSalt: %v", err)
	}
	if s1 != s2 {
		t.Fatal("salt unstable within one key version")
	}
}

func TestOrgSaltScopedPerOrg(t *testing.T) {
	svc, orgRepo, _, org := setupRotation(t)
	other, _ := orgRepo.Create(context.Background(), nil, &types.Org{Slug: "globex", Name: "Globex"})
	s1, _ := svc.OrgSalt(context.Background(), org)
	s2, _ := svc.OrgSalt(context.Background(), other)
	if s1 == s2 {
		t.Fatal("two orgs share a salt")
	}
}

func TestRotateChangesSaltAndAudits(t *testing.T) {
	svc, _, trail, org := setupRotation(t)
	ctx := context.Background()
	before, _ := svc.OrgSalt(ctx, org)

	adminID := uuid.New()
	version, err := svc.Rotate(ctx, org.ID, &adminID)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if version != 2 {
		t.Fatalf("version=%d after first rotation, want 2", version)
	}

	after, _ := svc.OrgSalt(ctx, org)
	if before == after {
		t.Fatal("rotation left the salt unchanged")
	}

	if got := trail.Query(audit.Filter{OrgID: org.ID, Type: audit.EventRotationInitiated}); len(got) != 1 {
		t.Fatalf("initiated events: %d, want 1", len(got))
	}
	success := trail.Query(audit.Filter{OrgID: org.ID, Type: audit.EventRotationSuccess})
	if len(success) != 1 {
		t.Fatalf("success events: %d, want 1", len(success))
	}
	if success[0].UserID == nil || *success[0].UserID != adminID {
		t.Fatal("success event not attributed to the admin")
	}
	if success[0].Details["key_version"] != 2 {
		t.Fatalf("success event key_version=%v, want 2", success[0].Details["key_version"])
	}
}

func TestRotateFailureAudited(t *testing.T) {
	svc, _, trail, _ := setupRotation(t)
	missing := uuid.New()
	if _, err := svc.Rotate(context.Background(), missing, nil); err == nil {
		t.Fatal("rotation of unknown org succeeded")
	}
	if got := trail.Query(audit.Filter{OrgID: missing, Type: audit.EventRotationFailed}); len(got) != 1 {
		t.Fatalf("failed events: %d, want 1", len(got))
	}
}

func TestOrgSaltNilOrgFailsClosed(t *testing.T) {
	svc, _, _, _ := setupRotation(t)
	if _, err := svc.OrgSalt(context.Background(), nil); err == nil {
		t.Fatal("nil org produced a salt")
	}
}
