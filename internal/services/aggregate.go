package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/config"
	"github.com/veilhq/veil-backend/internal/logger"
	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/privacy"
	"github.com/veilhq/veil-backend/internal/repos"
)

// ThreadView is the only shape in which thread data leaves the gate. The
// admin UI, the export writers and the digest builder all consume it, so a
// bypass route around the threshold simply does not exist: there is one
// evaluate path and this is its output.
type ThreadView struct {
	ThreadID         uuid.UUID        `json:"thread_id"`
	Topic            string           `json:"topic"`
	Channel          string           `json:"channel"`
	Decision         privacy.Decision `json:"decision"`
	NoisedCount      int              `json:"noised_participant_count"`
	Messages         []string         `json:"messages,omitempty"`
	SuppressedNotice string           `json:"suppressed_notice,omitempty"`
}

type ThemeView struct {
	Label            string   `json:"label"`
	NoisedPostsCount int      `json:"noised_posts_count"`
	TopTerms         []string `json:"top_terms,omitempty"`
	ExemplarQuotes   []string `json:"exemplar_quotes,omitempty"`
	Channels         []string `json:"channels,omitempty"`
	SuppressedNotice string   `json:"suppressed_notice,omitempty"`
}

type AggregateService interface {
	ThreadViews(ctx context.Context, orgID uuid.UUID) ([]ThreadView, error)
	ThreadViewByID(ctx context.Context, orgID, threadID uuid.UUID) (*ThreadView, error)
	ThemeViews(ctx context.Context, orgID uuid.UUID) ([]ThemeView, error)
}

type aggregateService struct {
	db             *gorm.DB
	log            *logger.Logger
	policy         config.PrivacyPolicy
	orgRepo        repos.OrgRepo
	threadRepo     repos.ThreadRepo
	submissionRepo repos.SubmissionRepo
	themeRepo      repos.ThemeRepo
}

func NewAggregateService(
	db *gorm.DB,
	log *logger.Logger,
	policy config.PrivacyPolicy,
	orgRepo repos.OrgRepo,
	threadRepo repos.ThreadRepo,
	submissionRepo repos.SubmissionRepo,
	themeRepo repos.ThemeRepo,
) AggregateService {
	serviceLog := log.With("service", "AggregateService")
	return &aggregateService{
		db:             db,
		log:            serviceLog,
		policy:         policy,
		orgRepo:        orgRepo,
		threadRepo:     threadRepo,
		submissionRepo: submissionRepo,
		themeRepo:      themeRepo,
	}
}

func (s *aggregateService) ThreadViews(ctx context.Context, orgID uuid.UUID) ([]ThreadView, error) {
	org, err := s.orgRepo.GetByID(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("org lookup failed: %w", err)
	}
	threads, err := s.threadRepo.GetByOrgID(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("thread query failed: %w", err)
	}
	views := make([]ThreadView, 0, len(threads))
	for _, thread := range threads {
		view, err := s.buildThreadView(ctx, org.KThreshold, thread.ID, thread.Topic, thread.Channel, thread.ParticipantCount)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *aggregateService) ThreadViewByID(ctx context.Context, orgID, threadID uuid.UUID) (*ThreadView, error) {
	org, err := s.orgRepo.GetByID(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("org lookup failed: %w", err)
	}
	thread, err := s.threadRepo.GetByID(ctx, nil, threadID)
	if err != nil {
		return nil, err
	}
	if thread.OrgID != orgID {
		return nil, pkgerrors.ErrNotFound
	}
	return s.buildThreadView(ctx, org.KThreshold, thread.ID, thread.Topic, thread.Channel, thread.ParticipantCount)
}

// buildThreadView evaluates the threshold fresh and shapes the result. The
// decision is recomputed here on every call; nothing upstream caches it.
func (s *aggregateService) buildThreadView(ctx context.Context, kThreshold int, threadID uuid.UUID, topic, channel string, participantCount int) (*ThreadView, error) {
	decision := privacy.EvaluateCounts(participantCount, kThreshold)
	noised, err := privacy.AddNoise(decision.ParticipantCount, privacy.DefaultSensitivity, s.policy.EpsilonParticipants)
	if err != nil {
		return nil, err
	}
	view := &ThreadView{
		ThreadID:    threadID,
		Topic:       topic,
		Channel:     channel,
		Decision:    decision,
		NoisedCount: noised,
	}
	if !decision.Visible() {
		view.SuppressedNotice = SuppressedNotice(decision)
		return view, nil
	}
	submissions, err := s.submissionRepo.GetByThreadID(ctx, nil, threadID)
	if err != nil {
		return nil, fmt.Errorf("submission query failed: %w", err)
	}
	view.Messages = make([]string, 0, len(submissions))
	for _, sub := range submissions {
		// Stored bodies are already sanitized; scrub again on the way
		// out so a dirty row can never surface as-is.
		view.Messages = append(view.Messages, privacy.Sanitize(sub.Body))
	}
	return view, nil
}

func (s *aggregateService) ThemeViews(ctx context.Context, orgID uuid.UUID) ([]ThemeView, error) {
	org, err := s.orgRepo.GetByID(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("org lookup failed: %w", err)
	}
	rows, err := s.themeRepo.GetByOrgID(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("theme query failed: %w", err)
	}
	views := make([]ThemeView, 0, len(rows))
	for _, row := range rows {
		noised, err := privacy.AddNoise(row.PostsCount, privacy.DefaultSensitivity, s.policy.EpsilonThemes)
		if err != nil {
			return nil, err
		}
		view := ThemeView{
			Label:            row.Label,
			NoisedPostsCount: noised,
		}
		decision := privacy.EvaluateCounts(row.ParticipantCount, org.KThreshold)
		if !decision.Visible() {
			view.SuppressedNotice = SuppressedNotice(decision)
			views = append(views, view)
			continue
		}
		_ = json.Unmarshal(row.TopTerms, &view.TopTerms)
		_ = json.Unmarshal(row.ExemplarQuotes, &view.ExemplarQuotes)
		_ = json.Unmarshal(row.Channels, &view.Channels)
		for i := range view.ExemplarQuotes {
			view.ExemplarQuotes[i] = privacy.Sanitize(view.ExemplarQuotes[i])
		}
		views = append(views, view)
	}
	return views, nil
}

// SuppressedNotice is the admin-facing banner text for a gated unit. It is
// data, not an error: below-threshold is an expected state.
func SuppressedNotice(d privacy.Decision) string {
	if d.NeededForReveal == 1 {
		return "Not enough data yet: 1 more participant needed before content can be shown."
	}
	return fmt.Sprintf("Not enough data yet: %d more participants needed before content can be shown.", d.NeededForReveal)
}
