// Package domain contains persistence models for the project service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Project is the bottom level of the tenancy hierarchy. WorkspaceID is
// immutable after creation.
type Project struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	WorkspaceID snowflake.ID `gorm:"column:workspace_id;not null;index" json:"workspace_id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }
