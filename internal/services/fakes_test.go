package services

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/repos"
	"github.com/veilhq/veil-backend/internal/types"
)

// In-memory repo fakes. They honor the same contracts as the gorm
// implementations (distinct-handle counting included) so service tests
// exercise real gate behavior without a database.

type fakeOrgRepo struct {
	mu   sync.Mutex
	orgs map[uuid.UUID]*types.Org
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{orgs: map[uuid.UUID]*types.Org{}}
}

func (f *fakeOrgRepo) Create(ctx context.Context, tx *gorm.DB, org *types.Org) (*types.Org, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if org.KThreshold <= 0 {
		org.KThreshold = 5
	}
	if org.KeyVersion <= 0 {
		org.KeyVersion = 1
	}
	f.orgs[org.ID] = org
	return org, nil
}

func (f *fakeOrgRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Org, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return org, nil
}

func (f *fakeOrgRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Org, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, org := range f.orgs {
		if org.Slug == slug {
			return org, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (f *fakeOrgRepo) UpdateKThreshold(ctx context.Context, tx *gorm.DB, id uuid.UUID, k int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[id]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	org.KThreshold = k
	return nil
}

func (f *fakeOrgRepo) BumpKeyVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[id]
	if !ok {
		return 0, pkgerrors.ErrNotFound
	}
	org.KeyVersion++
	return org.KeyVersion, nil
}

func (f *fakeOrgRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Org, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Org, 0, len(f.orgs))
	for _, org := range f.orgs {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

type fakeThreadRepo struct {
	mu           sync.Mutex
	threads      map[uuid.UUID]*types.FeedbackThread
	participants map[uuid.UUID]map[string]bool
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{
		threads:      map[uuid.UUID]*types.FeedbackThread{},
		participants: map[uuid.UUID]map[string]bool{},
	}
}

func (f *fakeThreadRepo) Create(ctx context.Context, tx *gorm.DB, thread *types.FeedbackThread) (*types.FeedbackThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if thread.ID == uuid.Nil {
		thread.ID = uuid.New()
	}
	f.threads[thread.ID] = thread
	f.participants[thread.ID] = map[string]bool{}
	return thread, nil
}

func (f *fakeThreadRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.FeedbackThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return thread, nil
}

func (f *fakeThreadRepo) GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.FeedbackThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.FeedbackThread, 0)
	for _, thread := range f.threads {
		if thread.OrgID == orgID {
			out = append(out, thread)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeThreadRepo) RecordContribution(ctx context.Context, tx *gorm.DB, threadID uuid.UUID, handle string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[threadID]
	if !ok {
		return 0, pkgerrors.ErrNotFound
	}
	set := f.participants[threadID]
	if !set[handle] {
		set[handle] = true
		thread.ParticipantCount++
	}
	return thread.ParticipantCount, nil
}

type fakeSubmissionRepo struct {
	mu   sync.Mutex
	rows []*types.Submission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo { return &fakeSubmissionRepo{} }

func (f *fakeSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, submissions []*types.Submission) ([]*types.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range submissions {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		f.rows = append(f.rows, s)
	}
	return submissions, nil
}

func (f *fakeSubmissionRepo) GetByThreadID(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) ([]*types.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Submission, 0)
	for _, s := range f.rows {
		if s.ThreadID == threadID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubmissionRepo) GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Submission, 0)
	for _, s := range f.rows {
		if s.OrgID == orgID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubmissionRepo) CountDistinctHandlesByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	for _, s := range f.rows {
		if s.OrgID == orgID {
			seen[s.Handle] = true
		}
	}
	return len(seen), nil
}

type fakeThemeRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]*types.Theme
}

func newFakeThemeRepo() *fakeThemeRepo {
	return &fakeThemeRepo{rows: map[uuid.UUID][]*types.Theme{}}
}

func (f *fakeThemeRepo) ReplaceForOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, themes []*types.Theme) ([]*types.Theme, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[orgID] = themes
	return themes, nil
}

func (f *fakeThemeRepo) GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.Theme, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[orgID], nil
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (c *captureNotifier) Publish(ctx context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

func (c *captureNotifier) all() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.sent))
	copy(out, c.sent)
	return out
}

var (
	_ repos.OrgRepo        = (*fakeOrgRepo)(nil)
	_ repos.ThreadRepo     = (*fakeThreadRepo)(nil)
	_ repos.SubmissionRepo = (*fakeSubmissionRepo)(nil)
	_ repos.ThemeRepo      = (*fakeThemeRepo)(nil)
	_ NotifierService      = (*captureNotifier)(nil)
)
