package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/config"
	"github.com/veilhq/veil-backend/internal/logger"
	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/privacy"
	"github.com/veilhq/veil-backend/internal/repos"
	"github.com/veilhq/veil-backend/internal/types"
)

// IngestInput is what the Slack events layer hands over: raw text and raw
// identity. Both are transformed in memory and never persisted as received.
type IngestInput struct {
	OrgSlug  string
	Identity string
	Body     string
	Channel  string
	Dept     string
	ThreadID *uuid.UUID
}

type IngestResult struct {
	ThreadID uuid.UUID        `json:"thread_id"`
	Handle   string           `json:"handle"`
	Body     string           `json:"body"`
	Decision privacy.Decision `json:"decision"`
}

type IngestService interface {
	SubmitFeedback(ctx context.Context, in IngestInput) (*IngestResult, error)
}

type ingestService struct {
	db             *gorm.DB
	log            *logger.Logger
	policy         config.PrivacyPolicy
	orgRepo        repos.OrgRepo
	threadRepo     repos.ThreadRepo
	submissionRepo repos.SubmissionRepo
	keyRotation    KeyRotationService
	notifier       NotifierService
	jitter         *privacy.JitterScheduler
}

func NewIngestService(
	db *gorm.DB,
	log *logger.Logger,
	policy config.PrivacyPolicy,
	orgRepo repos.OrgRepo,
	threadRepo repos.ThreadRepo,
	submissionRepo repos.SubmissionRepo,
	keyRotation KeyRotationService,
	notifier NotifierService,
	jitter *privacy.JitterScheduler,
) IngestService {
	serviceLog := log.With("service", "IngestService")
	return &ingestService{
		db:             db,
		log:            serviceLog,
		policy:         policy,
		orgRepo:        orgRepo,
		threadRepo:     threadRepo,
		submissionRepo: submissionRepo,
		keyRotation:    keyRotation,
		notifier:       notifier,
		jitter:         jitter,
	}
}

// SubmitFeedback runs the full gate: scrub -> pseudonymize -> persist ->
// fresh threshold evaluation, all before the response. The notification
// side effect goes out later on a jittered schedule so delivery time says
// nothing about submission time.
func (s *ingestService) SubmitFeedback(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if strings.TrimSpace(in.Body) == "" || strings.TrimSpace(in.Identity) == "" {
		return nil, pkgerrors.ErrInvalidArgument
	}

	org, err := s.orgRepo.GetBySlug(ctx, nil, in.OrgSlug)
	if err != nil {
		return nil, fmt.Errorf("org lookup failed: %w", err)
	}

	// Fail closed: no salt, no handle, no submission. A fallback salt
	// would make handles comparable across orgs.
	salt, err := s.keyRotation.OrgSalt(ctx, org)
	if err != nil {
		return nil, err
	}
	handle, err := privacy.DeriveHandle(in.Identity, salt, privacy.RotationWindow(time.Now()))
	if err != nil {
		return nil, err
	}

	sanitized := privacy.Sanitize(in.Body)

	var result IngestResult
	err = runInTx(ctx, s.db, func(tx *gorm.DB) error {
		thread, txErr := s.resolveThread(ctx, tx, org, in)
		if txErr != nil {
			return txErr
		}

		if _, txErr = s.submissionRepo.Create(ctx, tx, []*types.Submission{{
			OrgID:    org.ID,
			ThreadID: thread.ID,
			Handle:   handle,
			Body:     sanitized,
			Channel:  in.Channel,
			Dept:     in.Dept,
		}}); txErr != nil {
			return fmt.Errorf("failed to persist submission: %w", txErr)
		}

		count, txErr := s.threadRepo.RecordContribution(ctx, tx, thread.ID, handle)
		if txErr != nil {
			return fmt.Errorf("failed to record contribution: %w", txErr)
		}

		result = IngestResult{
			ThreadID: thread.ID,
			Handle:   handle,
			Body:     sanitized,
			Decision: privacy.EvaluateCounts(count, org.KThreshold),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scheduleNotification(org.ID, result)
	return &result, nil
}

// runInTx tolerates a nil db so unit tests can exercise the ingest path
// against fake repos; production wiring always passes the real handle.
func runInTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func (s *ingestService) resolveThread(ctx context.Context, tx *gorm.DB, org *types.Org, in IngestInput) (*types.FeedbackThread, error) {
	if in.ThreadID != nil && *in.ThreadID != uuid.Nil {
		thread, err := s.threadRepo.GetByID(ctx, tx, *in.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("thread lookup failed: %w", err)
		}
		if thread.OrgID != org.ID {
			return nil, pkgerrors.ErrNotFound
		}
		return thread, nil
	}
	return s.threadRepo.Create(ctx, tx, &types.FeedbackThread{
		OrgID:   org.ID,
		Channel: in.Channel,
	})
}

func (s *ingestService) scheduleNotification(orgID uuid.UUID, result IngestResult) {
	kind := NotifyNewActivity
	// Exactly at the threshold means this submission crossed it.
	if result.Decision.Visible() && result.Decision.ParticipantCount == result.Decision.KThreshold {
		kind = NotifyThresholdCrossed
	}
	n := Notification{
		OrgID:       orgID.String(),
		ThreadID:    result.ThreadID.String(),
		Kind:        kind,
		RenderState: string(result.Decision.RenderState),
	}
	s.jitter.Schedule("feedback_notification", s.policy.JitterMin(), s.policy.JitterMax(), func(ctx context.Context) error {
		return s.notifier.Publish(ctx, n)
	})
}
