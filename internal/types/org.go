package types

import (
	"time"

	"github.com/google/uuid"
)

// Org is a tenant. No pseudonym salt is ever stored here: salts are derived
// from the master key + KeyVersion at use time, so rotating the master key
// rotates every org salt without a data migration.
type Org struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name       string    `gorm:"not null;column:name" json:"name"`
	Slug       string    `gorm:"uniqueIndex;not null;column:slug" json:"slug"`
	KThreshold int       `gorm:"not null;default:5;column:k_threshold" json:"k_threshold"`
	KeyVersion int       `gorm:"not null;default:1;column:key_version" json:"key_version"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Org) TableName() string { return "org" }
