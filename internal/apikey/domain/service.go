package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Rotate(ctx context.Context, keyID string) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error
	Authenticate(ctx context.Context, raw string) (*Principal, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *TerminalKey) error
	Update(ctx context.Context, db *gorm.DB, key *TerminalKey) error
	FindByKeyID(ctx context.Context, db *gorm.DB, keyID string) (*TerminalKey, error)
	FindByHash(ctx context.Context, db *gorm.DB, hash string) (*TerminalKey, error)
	List(ctx context.Context, db *gorm.DB) ([]TerminalKey, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

type CreateRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Branch   string `json:"branch" validate:"required,max=64"`
	Store    string `json:"store" validate:"required,max=64"`
	Terminal string `json:"terminal" validate:"required,max=64"`
}

type Response struct {
	KeyID            string     `json:"key_id"`
	Name             string     `json:"name"`
	Branch           string     `json:"branch"`
	Store            string     `json:"store"`
	Terminal         string     `json:"terminal"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       *time.Time `json:"last_used_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	RotatedFromKeyID *string    `json:"rotated_from_key_id"`
}

// SecretResponse is the only time the raw key is shown.
type SecretResponse struct {
	KeyID  string `json:"key_id"`
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidKey       = errors.New("invalid_api_key")
	ErrInvalidKeyID     = errors.New("invalid_key_id")
	ErrNotFound         = errors.New("not_found")
	ErrLocationMismatch = errors.New("location_mismatch")
)
