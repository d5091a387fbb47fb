package types

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackThread is an aggregation unit: visibility of its content is gated
// on ParticipantCount. The render state is never stored; it is recomputed
// from ParticipantCount and the org threshold on every read.
type FeedbackThread struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrgID            uuid.UUID `gorm:"type:uuid;not null;index" json:"org_id"`
	Org              *Org      `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrgID;references:ID" json:"org,omitempty"`
	Channel          string    `gorm:"column:channel;index" json:"channel"`
	Topic            string    `gorm:"column:topic" json:"topic"`
	ParticipantCount int       `gorm:"not null;default:0;column:participant_count" json:"participant_count"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (FeedbackThread) TableName() string { return "feedback_thread" }

// ThreadParticipant records one pseudonymous handle's contribution to a
// thread. The (thread_id, handle) unique index is what makes the distinct
// participant count exact; the raw identity behind the handle never lands
// in this table.
type ThreadParticipant struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ThreadID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_thread_handle" json:"thread_id"`
	Handle    string    `gorm:"not null;uniqueIndex:idx_thread_handle;column:handle" json:"handle"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ThreadParticipant) TableName() string { return "thread_participant" }
