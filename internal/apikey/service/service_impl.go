package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	"github.com/smallbiznis/posreport/internal/clock"
	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
	"github.com/smallbiznis/posreport/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	apiKeyPrefix              = "posk_live_"
	apiKeySecretBytes         = 32
	apiKeyRotationGracePeriod = 24 * time.Hour

	// lastUsedResolution bounds last_used_at writes to one per key per minute.
	lastUsedResolution = time.Minute
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      apikeydomain.Repository
	Reference refdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      apikeydomain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	reference refdomain.Repository
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("apikey.service"),
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     p.Clock,
		reference: p.Reference,
	}
}

func (s *Service) List(ctx context.Context) ([]apikeydomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

// Create issues a key for one terminal of a known branch and store.
func (s *Service) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	req = apikeydomain.CreateRequest{
		Name:     strings.TrimSpace(req.Name),
		Branch:   strings.TrimSpace(req.Branch),
		Store:    strings.TrimSpace(req.Store),
		Terminal: strings.TrimSpace(req.Terminal),
	}
	verrs := validation.Collect(req)
	if !verrs.Has("branch") && !verrs.Has("store") {
		match, err := s.reference.Exists(ctx, req.Branch, req.Store)
		if err != nil {
			return nil, fmt.Errorf("reference lookup: %w", err)
		}
		if !match.Branch {
			verrs.Add("branch", "The selected branch is invalid.")
		} else if !match.Store {
			verrs.Add("store", "The selected store is invalid.")
		}
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	id := s.genID.Generate()
	keyID := newKeyID(id)
	plain, hash, err := generateAPIKey(keyID)
	if err != nil {
		return nil, err
	}

	key := &apikeydomain.TerminalKey{
		ID:        id,
		KeyID:     keyID,
		Name:      req.Name,
		Branch:    req.Branch,
		Store:     req.Store,
		Terminal:  req.Terminal,
		KeyHash:   hash,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	s.log.Info("terminal key issued",
		zap.String("key_id", keyID),
		zap.String("branch", key.Branch),
		zap.String("store", key.Store),
		zap.String("terminal", key.Terminal),
	)
	return &apikeydomain.SecretResponse{KeyID: keyID, APIKey: plain}, nil
}

// Rotate issues a replacement key. The old key keeps working for the grace period so
// the terminal can be reconfigured without dropping pushes.
func (s *Service) Rotate(ctx context.Context, keyID string) (*apikeydomain.SecretResponse, error) {
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return nil, apikeydomain.ErrInvalidKeyID
	}

	var result *apikeydomain.SecretResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByKeyID(ctx, tx, trimmed)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		if current == nil || !current.Usable(now) {
			return apikeydomain.ErrNotFound
		}

		current.ExpiresAt = ptrTime(now.Add(apiKeyRotationGracePeriod))
		current.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, current); err != nil {
			return err
		}

		id := s.genID.Generate()
		nextKeyID := newKeyID(id)
		plain, hash, err := generateAPIKey(nextKeyID)
		if err != nil {
			return err
		}

		rotatedFrom := current.KeyID
		next := &apikeydomain.TerminalKey{
			ID:               id,
			KeyID:            nextKeyID,
			Name:             current.Name,
			Branch:           current.Branch,
			Store:            current.Store,
			Terminal:         current.Terminal,
			KeyHash:          hash,
			IsActive:         true,
			CreatedAt:        now,
			UpdatedAt:        now,
			RotatedFromKeyID: &rotatedFrom,
		}
		if err := s.repo.Insert(ctx, tx, next); err != nil {
			return err
		}

		result = &apikeydomain.SecretResponse{KeyID: next.KeyID, APIKey: plain}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Revoke(ctx context.Context, keyID string) error {
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return apikeydomain.ErrInvalidKeyID
	}

	key, err := s.repo.FindByKeyID(ctx, s.db, trimmed)
	if err != nil {
		return err
	}
	if key == nil {
		return apikeydomain.ErrNotFound
	}

	now := s.clock.Now().UTC()
	key.IsActive = false
	key.UpdatedAt = now
	if key.ExpiresAt == nil || key.ExpiresAt.After(now) {
		key.ExpiresAt = &now
	}
	return s.repo.Update(ctx, s.db, key)
}

// Authenticate resolves a raw bearer key to the terminal it was issued for. Unknown,
// revoked and expired keys all yield ErrInvalidKey.
func (s *Service) Authenticate(ctx context.Context, raw string) (*apikeydomain.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apikeydomain.ErrInvalidKey
	}

	hash := apikeydomain.HashAPIKey(raw)
	key, err := s.repo.FindByHash(ctx, s.db, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup terminal key: %w", err)
	}
	if key == nil || subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return nil, apikeydomain.ErrInvalidKey
	}

	now := s.clock.Now().UTC()
	if !key.Usable(now) {
		return nil, apikeydomain.ErrInvalidKey
	}

	if key.LastUsedAt == nil || now.Sub(*key.LastUsedAt) >= lastUsedResolution {
		if err := s.repo.TouchLastUsed(ctx, s.db, key.ID, now); err != nil {
			s.log.Warn("failed to record terminal key use", zap.String("key_id", key.KeyID), zap.Error(err))
		}
	}

	return &apikeydomain.Principal{
		KeyID:    key.KeyID,
		Branch:   key.Branch,
		Store:    key.Store,
		Terminal: key.Terminal,
	}, nil
}

func toResponse(key *apikeydomain.TerminalKey) apikeydomain.Response {
	return apikeydomain.Response{
		KeyID:            key.KeyID,
		Name:             key.Name,
		Branch:           key.Branch,
		Store:            key.Store,
		Terminal:         key.Terminal,
		IsActive:         key.IsActive,
		CreatedAt:        key.CreatedAt,
		LastUsedAt:       key.LastUsedAt,
		ExpiresAt:        key.ExpiresAt,
		RotatedFromKeyID: key.RotatedFromKeyID,
	}
}

func generateAPIKey(keyID string) (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	secretPart := hex.EncodeToString(secret)
	trimmed := strings.TrimPrefix(keyID, "key_")
	plain := fmt.Sprintf("%s%s_%s", apiKeyPrefix, trimmed, secretPart)
	return plain, apikeydomain.HashAPIKey(plain), nil
}

func newKeyID(id snowflake.ID) string {
	return "key_" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}

func ptrTime(value time.Time) *time.Time {
	return &value
}
