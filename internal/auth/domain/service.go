package domain

import (
	"context"
	"time"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, credential string) error
	// Authenticate is the session gate: it confirms the credential against the session
	// store, refreshes activity and returns the caller.
	Authenticate(ctx context.Context, credential string) (*Principal, error)
	// Check applies the same validity rules as Authenticate without refreshing activity.
	Check(ctx context.Context, credential string) (bool, error)
	PruneIdleSessions(ctx context.Context) (int64, error)
}

type CreateUserRequest struct {
	Email    string
	Name     string
	Password string
	Role     string
}

type LoginRequest struct {
	Email     string
	Password  string
	Remember  bool
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User *User
	// Credential is the front-door cookie value: the user id and the raw session
	// identifier.
	Credential string
	Remember   bool
	ExpiresAt  *time.Time
}

// Principal is an authenticated caller.
type Principal struct {
	User      *User
	TokenHash string
}
