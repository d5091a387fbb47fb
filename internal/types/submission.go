package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Submission is one piece of feedback after the privacy gate has run: Body
// is already sanitized and Handle is the rotating pseudonym. Raw text and
// raw identity exist only in memory inside the ingest request.
type Submission struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrgID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"org_id"`
	ThreadID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"thread_id"`
	Thread    *FeedbackThread `gorm:"constraint:OnDelete:CASCADE;foreignKey:ThreadID;references:ID" json:"thread,omitempty"`
	Handle    string          `gorm:"not null;index;column:handle" json:"handle"`
	Body      string          `gorm:"not null;column:body" json:"body"`
	Channel   string          `gorm:"column:channel" json:"channel"`
	Dept      string          `gorm:"column:dept" json:"dept"`
	Metadata  datatypes.JSON  `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time       `gorm:"not null;default:now()" json:"created_at"`
}

func (Submission) TableName() string { return "submission" }
