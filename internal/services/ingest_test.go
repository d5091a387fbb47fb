package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/veilhq/veil-backend/internal/audit"
	"github.com/veilhq/veil-backend/internal/logger"
	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/privacy"
	"github.com/veilhq/veil-backend/internal/types"
)

const testMasterKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

type ingestHarness struct {
	svc        IngestService
	orgRepo    *fakeOrgRepo
	threadRepo *fakeThreadRepo
	subRepo    *fakeSubmissionRepo
	notifier   *captureNotifier
	trail      *audit.MemoryTrail
	org        *types.Org
}

func setupIngest(t *testing.T) *ingestHarness {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	orgRepo := newFakeOrgRepo()
	threadRepo := newFakeThreadRepo()
	subRepo := newFakeSubmissionRepo()
	notifier := &captureNotifier{}
	trail := audit.NewMemoryTrail(100)

	org, _ := orgRepo.Create(context.Background(), nil, &types.Org{Slug: "acme", Name: "Acme", KThreshold: 5})

	keyRotation, err := NewKeyRotationService(nil, log, orgRepo, trail, testMasterKey)
	if err != nil {
		t.Fatalf("NewKeyRotationService: %v", err)
	}
	jitter := privacy.NewJitterScheduler(context.Background(), log)
	policy := testPolicy()
	svc := NewIngestService(nil, log, policy, orgRepo, threadRepo, subRepo, keyRotation, notifier, jitter)
	return &ingestHarness{
		svc:        svc,
		orgRepo:    orgRepo,
		threadRepo: threadRepo,
		subRepo:    subRepo,
		notifier:   notifier,
		trail:      trail,
		org:        org,
	}
}

func TestSubmitFeedbackSanitizesAndPseudonymizes(t *testing.T) {
	h := setupIngest(t)
	res, err := h.svc.SubmitFeedback(context.Background(), IngestInput{
		OrgSlug:  "acme",
		Identity: "U024BE7LH",
		Body:     "my manager reads my email a@b.com, ping @joe",
		Channel:  "eng",
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if strings.Contains(res.Body, "a@b.com") || strings.Contains(res.Body, "@joe") {
		t.Fatalf("body not sanitized: %q", res.Body)
	}
	if res.Handle == "U024BE7LH" || res.Handle == "" {
		t.Fatalf("handle %q not pseudonymous", res.Handle)
	}
	stored, _ := h.subRepo.GetByThreadID(context.Background(), nil, res.ThreadID)
	if len(stored) != 1 {
		t.Fatalf("stored %d submissions, want 1", len(stored))
	}
	if strings.Contains(stored[0].Body, "a@b.com") {
		t.Fatalf("raw PII persisted: %q", stored[0].Body)
	}
	if stored[0].Handle != res.Handle {
		t.Fatal("stored handle differs from returned handle")
	}
}

func TestSubmitFeedbackCountsDistinctHandles(t *testing.T) {
	h := setupIngest(t)
	ctx := context.Background()

	first, err := h.svc.SubmitFeedback(ctx, IngestInput{OrgSlug: "acme", Identity: "user-1", Body: "feedback one"})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	threadID := first.ThreadID

	// Same person again: count must not move.
	res, err := h.svc.SubmitFeedback(ctx, IngestInput{OrgSlug: "acme", Identity: "user-1", Body: "feedback two", ThreadID: &threadID})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if res.Decision.ParticipantCount != 1 {
		t.Fatalf("repeat contributor moved count to %d", res.Decision.ParticipantCount)
	}

	// Four more distinct people push it to the threshold.
	for _, id := range []string{"user-2", "user-3", "user-4", "user-5"} {
		res, err = h.svc.SubmitFeedback(ctx, IngestInput{OrgSlug: "acme", Identity: id, Body: "more feedback", ThreadID: &threadID})
		if err != nil {
			t.Fatalf("SubmitFeedback(%s): %v", id, err)
		}
	}
	if res.Decision.ParticipantCount != 5 {
		t.Fatalf("count=%d after 5 distinct contributors", res.Decision.ParticipantCount)
	}
	// The submission that reaches k must see visible immediately.
	if !res.Decision.Visible() {
		t.Fatal("crossing submission did not observe visible state")
	}
}

func TestSubmitFeedbackThresholdNotification(t *testing.T) {
	h := setupIngest(t)
	ctx := context.Background()

	first, err := h.svc.SubmitFeedback(ctx, IngestInput{OrgSlug: "acme", Identity: "user-1", Body: "feedback"})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	threadID := first.ThreadID
	for _, id := range []string{"user-2", "user-3", "user-4", "user-5"} {
		if _, err := h.svc.SubmitFeedback(ctx, IngestInput{OrgSlug: "acme", Identity: id, Body: "feedback", ThreadID: &threadID}); err != nil {
			t.Fatalf("SubmitFeedback: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		sent := h.notifier.all()
		var kinds []string
		for _, n := range sent {
			kinds = append(kinds, n.Kind)
			if strings.Contains(n.Kind, "threshold") {
				if n.RenderState != string(privacy.RenderVisible) {
					t.Fatalf("threshold notification carries state %q", n.RenderState)
				}
				return
			}
		}
		select {
		case <-deadline:
			t.Fatalf("no threshold notification, saw kinds %v", kinds)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSubmitFeedbackRejectsEmptyInput(t *testing.T) {
	h := setupIngest(t)
	if _, err := h.svc.SubmitFeedback(context.Background(), IngestInput{OrgSlug: "acme", Identity: "", Body: "x"}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("empty identity: err=%v", err)
	}
	if _, err := h.svc.SubmitFeedback(context.Background(), IngestInput{OrgSlug: "acme", Identity: "u", Body: "  "}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("empty body: err=%v", err)
	}
}

func TestSubmitFeedbackUnknownOrg(t *testing.T) {
	h := setupIngest(t)
	if _, err := h.svc.SubmitFeedback(context.Background(), IngestInput{OrgSlug: "ghost", Identity: "u", Body: "text"}); err == nil {
		t.Fatal("unknown org accepted")
	}
}

func TestSubmitFeedbackSaltAccessAudited(t *testing.T) {
	h := setupIngest(t)
	if _, err := h.svc.SubmitFeedback(context.Background(), IngestInput{OrgSlug: "acme", Identity: "u", Body: "text"}); err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	events := h.trail.Query(audit.Filter{OrgID: h.org.ID, Type: audit.EventKeyAccess})
	if len(events) == 0 {
		t.Fatal("salt access left no audit event")
	}
}
