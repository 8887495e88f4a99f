package domain

import "errors"

var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUserNotFound            = errors.New("user not found")
	ErrUserExists              = errors.New("user already exists")
	ErrSessionNotFound         = errors.New("session not found")
	ErrInvalidSession          = errors.New("invalid session")
	ErrSessionInvalidated      = errors.New("session invalidated")
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
	ErrTooManyAttempts         = errors.New("too many login attempts")
)
