// Package domain contains core types for back-office authentication and the
// single-session store.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

// User is a back-office account.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Email        string       `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name         string       `gorm:"type:varchar(255);not null"`
	PasswordHash string       `gorm:"type:text;not null"`
	Role         string       `gorm:"type:varchar(32);not null;default:viewer"`
	Active       bool         `gorm:"not null;default:true"`
	CreatedAt    time.Time    `gorm:"not null"`
	UpdatedAt    time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session is the one current session of a user. The unique index on user_id is what
// makes a new login evict the previous one.
type Session struct {
	ID               snowflake.ID      `gorm:"primaryKey"`
	UserID           snowflake.ID      `gorm:"column:user_id;not null;uniqueIndex"`
	SessionTokenHash string            `gorm:"column:session_token_hash;type:varchar(64);not null;uniqueIndex"`
	IPAddress        string            `gorm:"column:ip_address;type:varchar(64)"`
	UserAgent        string            `gorm:"column:user_agent;type:text"`
	Remember         bool              `gorm:"column:remember;not null;default:false"`
	Metadata         datatypes.JSONMap `gorm:"column:metadata"`
	LastActivity     time.Time         `gorm:"column:last_activity;not null;index"`
	CreatedAt        time.Time         `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "user_sessions" }

// SessionMeta is the diagnostic data stored alongside a session identifier.
type SessionMeta struct {
	IPAddress string
	UserAgent string
	Remember  bool
	Metadata  map[string]any
}

// UserView is the client-facing projection of a user.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (u *User) View() *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleViewer:
		return true
	}
	return false
}
