package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/privacy"
	"github.com/veilhq/veil-backend/internal/repos"
	"github.com/veilhq/veil-backend/internal/themes"
	"github.com/veilhq/veil-backend/internal/types"
)

// ThemeBuildResult reports a rebuild. InsufficientData means the org as a
// whole has too few distinct contributors for any theme to be shown; that
// is an expected state, not a failure.
type ThemeBuildResult struct {
	ThemeCount       int  `json:"theme_count"`
	InsufficientData bool `json:"insufficient_data"`
}

type ThemeBuildService interface {
	RebuildForOrg(ctx context.Context, orgID uuid.UUID) (*ThemeBuildResult, error)
}

type themeBuildService struct {
	db             *gorm.DB
	log            *logger.Logger
	orgRepo        repos.OrgRepo
	threadRepo     repos.ThreadRepo
	submissionRepo repos.SubmissionRepo
	themeRepo      repos.ThemeRepo
	engine         *themes.Engine
}

func NewThemeBuildService(
	db *gorm.DB,
	log *logger.Logger,
	orgRepo repos.OrgRepo,
	threadRepo repos.ThreadRepo,
	submissionRepo repos.SubmissionRepo,
	themeRepo repos.ThemeRepo,
	engine *themes.Engine,
) ThemeBuildService {
	serviceLog := log.With("service", "ThemeBuildService")
	return &themeBuildService{
		db:             db,
		log:            serviceLog,
		orgRepo:        orgRepo,
		threadRepo:     threadRepo,
		submissionRepo: submissionRepo,
		themeRepo:      themeRepo,
		engine:         engine,
	}
}

func (s *themeBuildService) RebuildForOrg(ctx context.Context, orgID uuid.UUID) (*ThemeBuildResult, error) {
	org, err := s.orgRepo.GetByID(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("org lookup failed: %w", err)
	}

	// Org-wide floor: clustering a handful of voices would make every
	// theme a fingerprint. Below the threshold nothing gets built.
	orgHandles, err := s.submissionRepo.CountDistinctHandlesByOrg(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("org handle count failed: %w", err)
	}
	if !privacy.EvaluateCounts(orgHandles, org.KThreshold).Visible() {
		if _, err := s.themeRepo.ReplaceForOrg(ctx, nil, orgID, nil); err != nil {
			return nil, fmt.Errorf("failed to clear themes: %w", err)
		}
		return &ThemeBuildResult{InsufficientData: true}, nil
	}

	submissions, err := s.submissionRepo.GetByOrgID(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("submission query failed: %w", err)
	}
	threadRows, err := s.threadRepo.GetByOrgID(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("thread query failed: %w", err)
	}
	decisions := make(map[uuid.UUID]privacy.Decision, len(threadRows))
	for _, th := range threadRows {
		decisions[th.ID] = privacy.EvaluateCounts(th.ParticipantCount, org.KThreshold)
	}

	posts := make([]themes.Post, 0, len(submissions))
	for _, sub := range submissions {
		posts = append(posts, themes.Post{
			ThreadID: sub.ThreadID,
			Handle:   sub.Handle,
			Text:     sub.Body,
			Channel:  sub.Channel,
			Dept:     sub.Dept,
			Thread:   decisions[sub.ThreadID],
		})
	}

	clustered, err := s.engine.Cluster(ctx, posts)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}

	rows := make([]*types.Theme, 0, len(clustered))
	for _, th := range clustered {
		row := &types.Theme{
			OrgID:            orgID,
			Label:            th.Label,
			PostsCount:       th.PostsCount,
			ParticipantCount: th.ParticipantCount,
		}
		row.TopTerms = mustJSON(th.TopTerms)
		row.ExemplarQuotes = mustJSON(th.ExemplarQuotes)
		row.Channels = mustJSON(th.Channels)
		row.DeptHits = mustJSON(th.DeptHits)
		rows = append(rows, row)
	}
	if _, err := s.themeRepo.ReplaceForOrg(ctx, nil, orgID, rows); err != nil {
		return nil, fmt.Errorf("failed to persist themes: %w", err)
	}

	s.log.Info("rebuilt themes", "org_id", orgID, "themes", len(rows), "posts", len(posts))
	return &ThemeBuildResult{ThemeCount: len(rows)}, nil
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
