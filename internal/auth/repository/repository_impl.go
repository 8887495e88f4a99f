package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/auth/domain"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func New(conn *gorm.DB, genID *snowflake.Node, clk clock.Clock) (domain.UserRepository, domain.SessionStore) {
	r := &repo{db: conn, genID: genID, clock: clk}
	return r, r
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&count).Error
	return count, err
}

func (r *repo) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrUserExists
	}
	return err
}

func (r *repo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

var sessionUpsertColumns = []string{
	"session_token_hash",
	"ip_address",
	"user_agent",
	"remember",
	"metadata",
	"last_activity",
	"created_at",
	"updated_at",
}

func (r *repo) RecordSession(ctx context.Context, userID snowflake.ID, tokenHash string, meta domain.SessionMeta) error {
	now := r.clock.Now()
	row := domain.Session{
		ID:               r.genID.Generate(),
		UserID:           userID,
		SessionTokenHash: tokenHash,
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
		Remember:         meta.Remember,
		Metadata:         datatypes.JSONMap(meta.Metadata),
		LastActivity:     now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if row.Metadata == nil {
		row.Metadata = datatypes.JSONMap{}
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(sessionUpsertColumns),
		}).
		Create(&row).Error
}

func (r *repo) IsValid(ctx context.Context, userID snowflake.ID, tokenHash string, window time.Duration) (bool, error) {
	var row domain.Session
	err := r.db.WithContext(ctx).
		Select("session_token_hash", "last_activity").
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if subtle.ConstantTimeCompare([]byte(row.SessionTokenHash), []byte(tokenHash)) != 1 {
		return false, nil
	}
	if window > 0 && r.clock.Now().Sub(row.LastActivity) > window {
		return false, nil
	}
	return true, nil
}

func (r *repo) Touch(ctx context.Context, userID snowflake.ID) error {
	now := r.clock.Now()
	result := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"last_activity": now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *repo) EvictOthers(ctx context.Context, userID snowflake.ID, keepTokenHash string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND session_token_hash <> ?", userID, keepTokenHash).
		Delete(&domain.Session{}).Error
}

func (r *repo) Clear(ctx context.Context, userID snowflake.ID, tokenHash string) error {
	stmt := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if tokenHash != "" {
		stmt = stmt.Where("session_token_hash = ?", tokenHash)
	}
	return stmt.Delete(&domain.Session{}).Error
}

func (r *repo) PruneIdle(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("last_activity < ?", before).
		Delete(&domain.Session{})
	return result.RowsAffected, result.Error
}
