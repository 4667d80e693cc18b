// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is the top level of the tenancy hierarchy. OwnerID is the
// distinguished user that can never be demoted or removed while owner.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	OwnerID   snowflake.ID `gorm:"column:owner_id;not null;index" json:"owner_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
