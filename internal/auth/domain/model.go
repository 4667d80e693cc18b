// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User represents a system user account.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	IsSuperAdmin bool         `gorm:"column:is_super_admin;not null;default:false" json:"is_super_admin"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session. Only the sha256 hash of the
// bearer token is stored.
type Session struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index"`
	TokenHash string       `gorm:"column:token_hash;type:text;not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// Identity is the authenticated caller attached to request context.
type Identity struct {
	UserID       snowflake.ID
	Email        string
	Name         string
	IsSuperAdmin bool
}
