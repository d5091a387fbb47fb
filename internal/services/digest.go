package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/repos"
)

// Digest is the periodic summary for one org. Like exports, it is composed
// purely from gate output; a thread below threshold appears only as its
// banner line.
type Digest struct {
	OrgID       uuid.UUID `json:"org_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Body        string    `json:"body"`
	ThreadCount int       `json:"thread_count"`
}

type DigestService interface {
	BuildForOrg(ctx context.Context, orgID uuid.UUID) (*Digest, error)
	BuildAll(ctx context.Context) ([]*Digest, error)
}

type digestService struct {
	db        *gorm.DB
	log       *logger.Logger
	orgRepo   repos.OrgRepo
	aggregate AggregateService
	notifier  NotifierService
}

func NewDigestService(db *gorm.DB, log *logger.Logger, orgRepo repos.OrgRepo, aggregate AggregateService, notifier NotifierService) DigestService {
	serviceLog := log.With("service", "DigestService")
	return &digestService{
		db:        db,
		log:       serviceLog,
		orgRepo:   orgRepo,
		aggregate: aggregate,
		notifier:  notifier,
	}
}

func (s *digestService) BuildForOrg(ctx context.Context, orgID uuid.UUID) (*Digest, error) {
	views, err := s.aggregate.ThreadViews(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("digest thread views failed: %w", err)
	}
	themes, err := s.aggregate.ThemeViews(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("digest theme views failed: %w", err)
	}

	var b strings.Builder
	b.WriteString("Team feedback digest\n\n")

	if len(themes) > 0 {
		b.WriteString("Themes:\n")
		for _, th := range themes {
			if th.SuppressedNotice != "" {
				fmt.Fprintf(&b, "- %s: %s\n", th.Label, th.SuppressedNotice)
				continue
			}
			fmt.Fprintf(&b, "- %s (~%d posts)\n", th.Label, th.NoisedPostsCount)
			for _, q := range th.ExemplarQuotes {
				fmt.Fprintf(&b, "    %q\n", q)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Threads:\n")
	for _, v := range views {
		if !v.Decision.Visible() {
			fmt.Fprintf(&b, "- [%s] %s\n", v.Channel, v.SuppressedNotice)
			continue
		}
		fmt.Fprintf(&b, "- [%s] ~%d participants, %d messages\n", v.Channel, v.NoisedCount, len(v.Messages))
	}

	d := &Digest{
		OrgID:       orgID,
		GeneratedAt: time.Now().UTC(),
		Body:        b.String(),
		ThreadCount: len(views),
	}
	if err := s.notifier.Publish(ctx, Notification{
		OrgID: orgID.String(),
		Kind:  NotifyDigestReady,
	}); err != nil {
		s.log.Warn("digest notification failed", "org_id", orgID, "error", err)
	}
	return d, nil
}

const digestConcurrency = 4

func (s *digestService) BuildAll(ctx context.Context) ([]*Digest, error) {
	orgs, err := s.orgRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("org list failed: %w", err)
	}
	digests := make([]*Digest, len(orgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(digestConcurrency)
	for i, org := range orgs {
		g.Go(func() error {
			d, buildErr := s.BuildForOrg(gctx, org.ID)
			if buildErr != nil {
				return buildErr
			}
			digests[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return digests, nil
}
