package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Branch struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string       `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Branch) TableName() string { return "branches" }

type Store struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	BranchCode string       `json:"branch_code" gorm:"type:varchar(64);not null;uniqueIndex:ux_stores_branch_code,priority:1"`
	Code       string       `json:"code" gorm:"type:varchar(64);not null;uniqueIndex:ux_stores_branch_code,priority:2"`
	Name       string       `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
}

func (Store) TableName() string { return "stores" }

// Match reports which halves of a branch/store pair are known. A store only matches
// under its own branch.
type Match struct {
	Branch bool
	Store  bool
}

func (m Match) OK() bool { return m.Branch && m.Store }
