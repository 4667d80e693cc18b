// Package domain contains persistence models for the workspace service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Workspace is the middle level of the tenancy hierarchy. OrgID is immutable
// after creation.
type Workspace struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"column:org_id;not null;index" json:"org_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null" json:"slug"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Workspace) TableName() string { return "workspaces" }
