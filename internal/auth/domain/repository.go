package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

//go:generate mockgen -source=repository.go -destination=../mocks/mock_repository.go -package=mocks

type UserRepository interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
}

// SessionStore is the single source of truth for which identifier is current for a
// user. Identifiers are passed as sha256 hashes, never raw.
type SessionStore interface {
	// RecordSession upserts the user's row in one statement, replacing any previous
	// identifier and setting last_activity to now.
	RecordSession(ctx context.Context, userID snowflake.ID, tokenHash string, meta SessionMeta) error
	// IsValid reports whether tokenHash is the user's current identifier and, when
	// window is positive, whether the session has been active within window.
	IsValid(ctx context.Context, userID snowflake.ID, tokenHash string, window time.Duration) (bool, error)
	Touch(ctx context.Context, userID snowflake.ID) error
	EvictOthers(ctx context.Context, userID snowflake.ID, keepTokenHash string) error
	// Clear removes the user's session. A non-empty tokenHash restricts the delete to a
	// row still holding that identifier, so a stale client cannot log out a newer one.
	Clear(ctx context.Context, userID snowflake.ID, tokenHash string) error
	PruneIdle(ctx context.Context, before time.Time) (int64, error)
}
