package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RotationEvent is the durable row behind the key-rotation audit trail.
// Details carries key versions and timings only, never content or PII.
type RotationEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Type      string         `gorm:"not null;index;column:type" json:"type"`
	OrgID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"org_id"`
	UserID    *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Error     string         `gorm:"column:error" json:"error,omitempty"`
	Details   datatypes.JSON `gorm:"type:jsonb;column:details" json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (RotationEvent) TableName() string { return "rotation_event" }
