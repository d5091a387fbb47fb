package types

import (
	"time"

	"github.com/google/uuid"
)

// AdminUser is an org administrator. Admins are the only authenticated
// principals; submitters are never users of this system.
type AdminUser struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrgID     uuid.UUID `gorm:"type:uuid;not null;index" json:"org_id"`
	Org       *Org      `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrgID;references:ID" json:"org,omitempty"`
	Email     string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password  string    `gorm:"not null;column:password" json:"-"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AdminUser) TableName() string { return "admin_user" }

type AdminToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *AdminUser `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Token     string     `gorm:"uniqueIndex;not null;column:token" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;column:expires_at" json:"expires_at"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (AdminToken) TableName() string { return "admin_token" }
