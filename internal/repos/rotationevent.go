package repos

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/veilhq/veil-backend/internal/audit"
	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/types"
)

type RotationEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.RotationEvent) (*types.RotationEvent, error)
	GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.RotationEvent, error)
}

type rotationEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRotationEventRepo(db *gorm.DB, baseLog *logger.Logger) RotationEventRepo {
	repoLog := baseLog.With("repo", "RotationEventRepo")
	return &rotationEventRepo{db: db, log: repoLog}
}

func (r *rotationEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.RotationEvent) (*types.RotationEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *rotationEventRepo) GetByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, limit int) ([]*types.RotationEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RotationEvent
	if orgID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// DurableTrail adapts the repo to the audit.Trail interface so the durable
// store and the in-memory ring are interchangeable at call sites.
type DurableTrail struct {
	repo RotationEventRepo
	log  *logger.Logger
}

func NewDurableTrail(repo RotationEventRepo, baseLog *logger.Logger) *DurableTrail {
	return &DurableTrail{repo: repo, log: baseLog.With("component", "DurableTrail")}
}

func (d *DurableTrail) Append(e audit.Event) {
	var details datatypes.JSON
	if len(e.Details) > 0 {
		if b, err := json.Marshal(e.Details); err == nil {
			details = datatypes.JSON(b)
		}
	}
	row := &types.RotationEvent{
		Type:    string(e.Type),
		OrgID:   e.OrgID,
		UserID:  e.UserID,
		Error:   e.Error,
		Details: details,
	}
	if _, err := d.repo.Create(context.Background(), nil, row); err != nil {
		d.log.Warn("failed to persist audit event", "type", e.Type, "error", err)
	}
}

func (d *DurableTrail) Query(f audit.Filter) []audit.Event {
	rows, err := d.repo.GetByOrgID(context.Background(), nil, f.OrgID, f.Limit)
	if err != nil {
		d.log.Warn("failed to query audit events", "error", err)
		return nil
	}
	out := make([]audit.Event, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if f.Type != "" && row.Type != string(f.Type) {
			continue
		}
		if !f.Since.IsZero() && row.CreatedAt.Before(f.Since) {
			continue
		}
		var details map[string]any
		if len(row.Details) > 0 {
			_ = json.Unmarshal(row.Details, &details)
		}
		out = append(out, audit.Event{
			Type:      audit.EventType(row.Type),
			OrgID:     row.OrgID,
			UserID:    row.UserID,
			Error:     row.Error,
			Timestamp: row.CreatedAt,
			Details:   details,
		})
	}
	return out
}

func (d *DurableTrail) Len() int {
	return len(d.Query(audit.Filter{}))
}
