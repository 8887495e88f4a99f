package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/auth/domain"
	"github.com/smallbiznis/posreport/internal/auth/password"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"github.com/smallbiznis/posreport/internal/observability/metrics"
	"github.com/smallbiznis/posreport/internal/ratelimit"
	"github.com/smallbiznis/posreport/pkg/db"
	"github.com/smallbiznis/posreport/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	minPasswordLength = 8

	credentialSeparator = "."
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   config.Config
	Users    domain.UserRepository
	Sessions domain.SessionStore
	Clock    clock.Clock
	GenID    *snowflake.Node
	Limiter  *ratelimit.LoginLimiter `optional:"true"`
	Metrics  *metrics.Metrics        `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	cfg      config.Config
	users    domain.UserRepository
	sessions domain.SessionStore
	clock    clock.Clock
	genID    *snowflake.Node
	limiter  *ratelimit.LoginLimiter
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("auth.service"),
		cfg:      p.Config,
		users:    p.Users,
		sessions: p.Sessions,
		clock:    p.Clock,
		genID:    p.GenID,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	verrs := validation.Errors{}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		verrs.Add("email", "The email must be a valid email address.")
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		verrs.Add("password", fmt.Sprintf("The password must be at least %d characters.", minPasswordLength))
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleViewer
	}
	if !domain.ValidRole(role) {
		verrs.Add("role", "The selected role is invalid.")
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultName(email)
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		Name:         name,
		PasswordHash: hashed,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	verrs := validation.Errors{}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		verrs.Add("email", "The email must be a valid email address.")
	}
	if req.Password == "" {
		verrs.Add("password", "The password field is required.")
	}
	if err := verrs.Err(); err != nil {
		s.metrics.RecordLogin(metrics.LoginResultValidation)
		return nil, err
	}

	if s.limiter.Enabled() {
		decision, err := s.limiter.Allow(ctx, email, req.IPAddress)
		switch {
		case err != nil:
			// redis outages must not lock every operator out of the back-office
			s.log.Warn("login rate limiter unavailable", zap.Error(err))
		case !decision.Allowed:
			s.metrics.RecordLogin(metrics.LoginResultThrottled)
			s.metrics.RecordRateLimitDenied("login")
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := s.verifyCredentials(ctx, email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.metrics.RecordLogin(metrics.LoginResultInvalid)
		}
		return nil, err
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	tokenHash := hashToken(rawToken)

	meta := domain.SessionMeta{
		IPAddress: strings.TrimSpace(req.IPAddress),
		UserAgent: strings.TrimSpace(req.UserAgent),
		Remember:  req.Remember,
	}
	err = db.RetryOnce(ctx, retryableStoreErr, func(ctx context.Context) error {
		if err := s.sessions.RecordSession(ctx, user.ID, tokenHash, meta); err != nil {
			return err
		}
		return s.sessions.EvictOthers(ctx, user.ID, tokenHash)
	})
	if err != nil {
		s.log.Error("record session failed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		s.metrics.RecordLogin(metrics.LoginResultStoreFailure)
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionStoreUnavailable, err)
	}

	s.metrics.RecordLogin(metrics.LoginResultSuccess)
	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.Bool("remember", req.Remember),
	)

	result := &domain.LoginResult{
		User:       user,
		Credential: encodeCredential(user.ID, rawToken),
		Remember:   req.Remember,
	}
	if req.Remember && s.cfg.AuthRememberFor > 0 {
		expiresAt := s.clock.Now().Add(s.cfg.AuthRememberFor)
		result.ExpiresAt = &expiresAt
	}
	return result, nil
}

func (s *Service) Logout(ctx context.Context, credential string) error {
	userID, rawToken, ok := decodeCredential(credential)
	if !ok {
		return domain.ErrInvalidSession
	}
	if err := s.sessions.Clear(ctx, userID, hashToken(rawToken)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSessionStoreUnavailable, err)
	}
	return nil
}

func (s *Service) Authenticate(ctx context.Context, credential string) (*domain.Principal, error) {
	return s.validate(ctx, credential, true)
}

func (s *Service) Check(ctx context.Context, credential string) (bool, error) {
	if _, err := s.validate(ctx, credential, false); err != nil {
		if errors.Is(err, domain.ErrSessionStoreUnavailable) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Service) PruneIdleSessions(ctx context.Context) (int64, error) {
	if s.cfg.AuthSessionIdleTimeout <= 0 {
		return 0, nil
	}
	return s.sessions.PruneIdle(ctx, s.clock.Now().Add(-s.cfg.AuthSessionIdleTimeout))
}

// validate is the gate decision. Every store error denies.
func (s *Service) validate(ctx context.Context, credential string, touch bool) (*domain.Principal, error) {
	userID, rawToken, ok := decodeCredential(credential)
	if !ok {
		s.metrics.RecordSessionValidation(metrics.SessionResultInvalid)
		return nil, domain.ErrInvalidSession
	}
	tokenHash := hashToken(rawToken)

	valid, err := s.sessions.IsValid(ctx, userID, tokenHash, s.cfg.AuthSessionIdleTimeout)
	if err != nil {
		return nil, s.storeFailure(userID, err)
	}
	if !valid {
		s.metrics.RecordSessionValidation(metrics.SessionResultInvalid)
		return nil, domain.ErrSessionInvalidated
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.metrics.RecordSessionValidation(metrics.SessionResultInvalid)
			return nil, domain.ErrSessionInvalidated
		}
		return nil, s.storeFailure(userID, err)
	}
	if !user.Active {
		s.metrics.RecordSessionValidation(metrics.SessionResultInvalid)
		return nil, domain.ErrSessionInvalidated
	}

	if touch {
		if err := s.sessions.Touch(ctx, userID); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				// evicted between the check and the touch
				s.metrics.RecordSessionValidation(metrics.SessionResultInvalid)
				return nil, domain.ErrSessionInvalidated
			}
			return nil, s.storeFailure(userID, err)
		}
	}

	s.metrics.RecordSessionValidation(metrics.SessionResultValid)
	return &domain.Principal{User: user, TokenHash: tokenHash}, nil
}

func (s *Service) storeFailure(userID snowflake.ID, err error) error {
	s.log.Error("session store failure, denying request",
		zap.String("user_id", userID.String()),
		zap.Error(err),
	)
	s.metrics.RecordSessionValidation(metrics.SessionResultStoreFailure)
	return fmt.Errorf("%w: %v", domain.ErrSessionStoreUnavailable, err)
}

func (s *Service) verifyCredentials(ctx context.Context, email, plain string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			password.VerifyDummy(plain)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !password.Verify(plain, user.PasswordHash) || !user.Active {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func retryableStoreErr(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", domain.ErrInvalidCredentials
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", domain.ErrInvalidCredentials
	}
	return strings.ToLower(addr.Address), nil
}

func defaultName(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func encodeCredential(userID snowflake.ID, rawToken string) string {
	return userID.String() + credentialSeparator + rawToken
}

// decodeCredential splits "<user id>.<token>". The user id is only an assertion; the
// session store decides whether the token is current for it.
func decodeCredential(credential string) (snowflake.ID, string, bool) {
	idPart, token, found := strings.Cut(strings.TrimSpace(credential), credentialSeparator)
	if !found || idPart == "" || token == "" {
		return 0, "", false
	}
	userID, err := snowflake.ParseString(idPart)
	if err != nil || userID <= 0 {
		return 0, "", false
	}
	return userID, token, true
}
