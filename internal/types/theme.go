package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Theme is a persisted clustering result over sanitized submissions.
// ExemplarQuotes only ever contains quotes from threads that were
// individually visible when the theme was built; a rebuild re-applies the
// gate rather than trusting the stored set.
type Theme struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrgID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"org_id"`
	Label            string         `gorm:"not null;column:label" json:"label"`
	PostsCount       int            `gorm:"not null;default:0;column:posts_count" json:"posts_count"`
	ParticipantCount int            `gorm:"not null;default:0;column:participant_count" json:"participant_count"`
	TopTerms         datatypes.JSON `gorm:"type:jsonb;column:top_terms" json:"top_terms"`
	ExemplarQuotes   datatypes.JSON `gorm:"type:jsonb;column:exemplar_quotes" json:"exemplar_quotes"`
	Channels         datatypes.JSON `gorm:"type:jsonb;column:channels" json:"channels"`
	DeptHits         datatypes.JSON `gorm:"type:jsonb;column:dept_hits" json:"dept_hits"`
	BuiltAt          time.Time      `gorm:"not null;default:now();column:built_at" json:"built_at"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Theme) TableName() string { return "theme" }
