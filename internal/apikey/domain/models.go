package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// TerminalKey is a hashed credential issued to one POS terminal. A key may only push
// records for the branch, store and terminal it was issued for.
type TerminalKey struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	KeyID            string       `gorm:"column:key_id;type:varchar(64);not null;uniqueIndex"`
	Name             string       `gorm:"type:varchar(255);not null"`
	Branch           string       `gorm:"type:varchar(64);not null;index:idx_terminal_keys_location,priority:1"`
	Store            string       `gorm:"type:varchar(64);not null;index:idx_terminal_keys_location,priority:2"`
	Terminal         string       `gorm:"type:varchar(64);not null;index:idx_terminal_keys_location,priority:3"`
	KeyHash          string       `gorm:"column:key_hash;type:varchar(64);not null;uniqueIndex"`
	IsActive         bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time    `gorm:"not null"`
	UpdatedAt        time.Time    `gorm:"not null"`
	LastUsedAt       *time.Time   `gorm:"column:last_used_at"`
	ExpiresAt        *time.Time   `gorm:"column:expires_at"`
	RotatedFromKeyID *string      `gorm:"column:rotated_from_key_id;type:varchar(64)"`
}

func (TerminalKey) TableName() string { return "terminal_keys" }

// Usable reports whether the key may authenticate at now.
func (k *TerminalKey) Usable(now time.Time) bool {
	return k.IsActive && (k.ExpiresAt == nil || now.Before(*k.ExpiresAt))
}

// Principal is the authenticated terminal behind a request.
type Principal struct {
	KeyID    string
	Branch   string
	Store    string
	Terminal string
}

// Covers reports whether a payload's location belongs to this terminal. Blank payload
// values are left to request validation.
func (p Principal) Covers(branch, store, terminal string) bool {
	return sameCode(p.Branch, branch) && sameCode(p.Store, store) && sameCode(p.Terminal, terminal)
}

func sameCode(issued, sent string) bool {
	sent = strings.TrimSpace(sent)
	return sent == "" || strings.EqualFold(issued, sent)
}
