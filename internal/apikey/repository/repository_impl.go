package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.TerminalKey) error {
	return db.WithContext(ctx).Create(key).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, key *apikeydomain.TerminalKey) error {
	return db.WithContext(ctx).Save(key).Error
}

func (r *repo) FindByKeyID(ctx context.Context, db *gorm.DB, keyID string) (*apikeydomain.TerminalKey, error) {
	return r.take(db.WithContext(ctx).Where("key_id = ?", keyID))
}

func (r *repo) FindByHash(ctx context.Context, db *gorm.DB, hash string) (*apikeydomain.TerminalKey, error) {
	return r.take(db.WithContext(ctx).Where("key_hash = ?", hash))
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]apikeydomain.TerminalKey, error) {
	var keys []apikeydomain.TerminalKey
	err := db.WithContext(ctx).
		Order("branch, store, terminal").
		Order("created_at DESC").
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&apikeydomain.TerminalKey{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}

// take returns nil, nil when no row matches.
func (r *repo) take(query *gorm.DB) (*apikeydomain.TerminalKey, error) {
	var key apikeydomain.TerminalKey
	err := query.Take(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}
