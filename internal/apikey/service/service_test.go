package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	"github.com/smallbiznis/posreport/internal/apikey/repository"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/reference"
	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
	"github.com/smallbiznis/posreport/pkg/db/dbtest"
	"github.com/smallbiznis/posreport/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   apikeydomain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := dbtest.Open(t, &apikeydomain.TerminalKey{}, &refdomain.Branch{}, &refdomain.Store{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))

	refs := reference.NewRepository(conn, node, clk)
	require.NoError(t, refs.EnsureBranchStore(context.Background(), "B1", "S1"))

	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Reference: refs,
	})
	return &fixture{svc: svc, db: conn, clock: clk}
}

func (f *fixture) issue(t *testing.T, terminal string) *apikeydomain.SecretResponse {
	t.Helper()
	secret, err := f.svc.Create(context.Background(), apikeydomain.CreateRequest{
		Name: "Front counter", Branch: "B1", Store: "S1", Terminal: terminal,
	})
	require.NoError(t, err)
	return secret
}

func TestCreateThenAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	secret := f.issue(t, " T1 ")
	assert.True(t, strings.HasPrefix(secret.APIKey, apiKeyPrefix))
	assert.True(t, strings.HasPrefix(secret.KeyID, "key_"))

	var stored apikeydomain.TerminalKey
	require.NoError(t, f.db.Where("key_id = ?", secret.KeyID).Take(&stored).Error)
	assert.Equal(t, "T1", stored.Terminal)
	assert.NotContains(t, stored.KeyHash, secret.APIKey)
	assert.Equal(t, apikeydomain.HashAPIKey(secret.APIKey), stored.KeyHash)

	principal, err := f.svc.Authenticate(ctx, secret.APIKey)
	require.NoError(t, err)
	assert.Equal(t, apikeydomain.Principal{KeyID: secret.KeyID, Branch: "B1", Store: "S1", Terminal: "T1"}, *principal)

	keys, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.NotNil(t, keys[0].LastUsedAt)
	assert.True(t, keys[0].LastUsedAt.Equal(f.clock.Now()))
}

func TestCreateValidatesLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, apikeydomain.CreateRequest{Name: "x", Branch: "B9", Store: "S1", Terminal: "T1"})
	verrs, ok := validation.As(err)
	require.True(t, ok)
	assert.True(t, verrs.Has("branch"))

	_, err = f.svc.Create(ctx, apikeydomain.CreateRequest{Name: " ", Branch: "B1", Store: "S1", Terminal: "  "})
	verrs, ok = validation.As(err)
	require.True(t, ok)
	assert.True(t, verrs.Has("name"))
	assert.True(t, verrs.Has("terminal"))

	var count int64
	require.NoError(t, f.db.Model(&apikeydomain.TerminalKey{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAuthenticateRejectsUnknownAndRevokedKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidKey)
	_, err = f.svc.Authenticate(ctx, "posk_live_nope")
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidKey)

	secret := f.issue(t, "T1")
	require.NoError(t, f.svc.Revoke(ctx, secret.KeyID))
	_, err = f.svc.Authenticate(ctx, secret.APIKey)
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidKey)

	assert.ErrorIs(t, f.svc.Revoke(ctx, "key_MISSING"), apikeydomain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Revoke(ctx, " "), apikeydomain.ErrInvalidKeyID)
}

func TestRotateKeepsOldKeyDuringGracePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.issue(t, "T1")
	next, err := f.svc.Rotate(ctx, old.KeyID)
	require.NoError(t, err)
	assert.NotEqual(t, old.APIKey, next.APIKey)

	_, err = f.svc.Authenticate(ctx, old.APIKey)
	require.NoError(t, err)
	principal, err := f.svc.Authenticate(ctx, next.APIKey)
	require.NoError(t, err)
	assert.Equal(t, "T1", principal.Terminal)

	f.clock.Advance(apiKeyRotationGracePeriod + time.Minute)
	_, err = f.svc.Authenticate(ctx, old.APIKey)
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidKey)
	_, err = f.svc.Authenticate(ctx, next.APIKey)
	assert.NoError(t, err)

	_, err = f.svc.Rotate(ctx, old.KeyID)
	assert.ErrorIs(t, err, apikeydomain.ErrNotFound)
}
