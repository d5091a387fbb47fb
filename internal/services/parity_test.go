package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/veilhq/veil-backend/internal/config"
	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/privacy"
	"github.com/veilhq/veil-backend/internal/types"
)

func testPolicy() config.PrivacyPolicy {
	return config.PrivacyPolicy{
		DefaultKThreshold:   5,
		EpsilonParticipants: 0.5,
		EpsilonThemes:       0.8,
		JitterMinMs:         1,
		JitterMaxMs:         5,
		AuditCapacity:       100,
	}
}

type paritySurfaces struct {
	orgID     uuid.UUID
	threadID  uuid.UUID
	aggregate AggregateService
	export    ExportService
	digest    DigestService
}

// One org, one thread with the given number of distinct contributors.
func setupParity(t *testing.T, participants int) paritySurfaces {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	orgRepo := newFakeOrgRepo()
	threadRepo := newFakeThreadRepo()
	submissionRepo := newFakeSubmissionRepo()
	themeRepo := newFakeThemeRepo()

	org, _ := orgRepo.Create(context.Background(), nil, &types.Org{Slug: "acme", Name: "Acme", KThreshold: 5})
	thread, _ := threadRepo.Create(context.Background(), nil, &types.FeedbackThread{OrgID: org.ID, Channel: "eng"})
	for i := 0; i < participants; i++ {
		handle := strings.Repeat("h", 4) + string(rune('a'+i))
		if _, err := threadRepo.RecordContribution(context.Background(), nil, thread.ID, handle); err != nil {
			t.Fatalf("RecordContribution: %v", err)
		}
		_, _ = submissionRepo.Create(context.Background(), nil, []*types.Submission{{
			OrgID:    org.ID,
			ThreadID: thread.ID,
			Handle:   handle,
			Body:     "the deployment process reach me at a@b.com is painful",
		}})
	}

	aggregate := NewAggregateService(nil, log, testPolicy(), orgRepo, threadRepo, submissionRepo, themeRepo)
	export := NewExportService(log, aggregate, nil)
	digest := NewDigestService(nil, log, orgRepo, aggregate, &captureNotifier{})
	return paritySurfaces{
		orgID:     org.ID,
		threadID:  thread.ID,
		aggregate: aggregate,
		export:    export,
		digest:    digest,
	}
}

// The same threshold must hold on all three read surfaces; there is no
// export-only or digest-only route around the gate.
func TestSurfaceParitySuppressedBelowThreshold(t *testing.T) {
	s := setupParity(t, 3)
	ctx := context.Background()

	// Admin UI surface.
	views, err := s.aggregate.ThreadViews(ctx, s.orgID)
	if err != nil {
		t.Fatalf("ThreadViews: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d views, want 1", len(views))
	}
	if views[0].Decision.Visible() {
		t.Fatal("UI surface shows a below-threshold thread")
	}
	if len(views[0].Messages) != 0 {
		t.Fatalf("UI surface leaked %d messages", len(views[0].Messages))
	}
	if views[0].SuppressedNotice == "" || !strings.Contains(views[0].SuppressedNotice, "2 more participants") {
		t.Fatalf("banner=%q, want needed-participants notice", views[0].SuppressedNotice)
	}

	// Export surface.
	csvOut, err := s.export.ExportCSV(ctx, s.orgID)
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if !strings.Contains(string(csvOut), string(privacy.RenderSuppressed)) {
		t.Fatal("CSV export missing suppressed state")
	}
	if strings.Contains(string(csvOut), "deployment process") {
		t.Fatal("CSV export leaked suppressed content")
	}
	jsonOut, err := s.export.ExportJSON(ctx, s.orgID)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if strings.Contains(string(jsonOut), "deployment process") {
		t.Fatal("JSON export leaked suppressed content")
	}

	// Digest surface.
	d, err := s.digest.BuildForOrg(ctx, s.orgID)
	if err != nil {
		t.Fatalf("BuildForOrg: %v", err)
	}
	if strings.Contains(d.Body, "deployment process") {
		t.Fatal("digest leaked suppressed content")
	}
	if !strings.Contains(d.Body, "Not enough data yet") {
		t.Fatalf("digest missing suppression banner: %q", d.Body)
	}
}

func TestSurfaceParityVisibleAtThreshold(t *testing.T) {
	s := setupParity(t, 5)
	ctx := context.Background()

	views, err := s.aggregate.ThreadViews(ctx, s.orgID)
	if err != nil {
		t.Fatalf("ThreadViews: %v", err)
	}
	if !views[0].Decision.Visible() {
		t.Fatal("UI surface suppresses an at-threshold thread")
	}
	if len(views[0].Messages) != 5 {
		t.Fatalf("UI surface shows %d messages, want 5", len(views[0].Messages))
	}
	for _, m := range views[0].Messages {
		if strings.Contains(m, "a@b.com") {
			t.Fatalf("visible message not sanitized: %q", m)
		}
	}

	csvOut, err := s.export.ExportCSV(ctx, s.orgID)
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if !strings.Contains(string(csvOut), string(privacy.RenderVisible)) {
		t.Fatal("CSV export missing visible state")
	}
	if !strings.Contains(string(csvOut), "deployment process") {
		t.Fatal("CSV export missing visible content")
	}
	if strings.Contains(string(csvOut), "a@b.com") {
		t.Fatal("CSV export leaked an email address")
	}

	d, err := s.digest.BuildForOrg(ctx, s.orgID)
	if err != nil {
		t.Fatalf("BuildForOrg: %v", err)
	}
	if strings.Contains(d.Body, "Not enough data yet") {
		t.Fatalf("digest suppresses an at-threshold thread: %q", d.Body)
	}
	if strings.Contains(d.Body, "a@b.com") {
		t.Fatal("digest leaked an email address")
	}
}

// The exported participant figure must be the noised one, never exact-only:
// across repeated exports the figure has to vary.
func TestExportCountsAreNoised(t *testing.T) {
	s := setupParity(t, 5)
	ctx := context.Background()
	seen := map[int]bool{}
	for i := 0; i < 100; i++ {
		views, err := s.aggregate.ThreadViews(ctx, s.orgID)
		if err != nil {
			t.Fatalf("ThreadViews: %v", err)
		}
		seen[views[0].NoisedCount] = true
	}
	if len(seen) < 2 {
		t.Fatalf("noised count fixed at a single value across 100 reads: %v", seen)
	}
}
