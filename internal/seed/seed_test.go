package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	"github.com/smallbiznis/posreport/internal/auth/mocks"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"github.com/smallbiznis/posreport/internal/reference"
	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
	"github.com/smallbiznis/posreport/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newParams(t *testing.T, boot config.BootstrapConfig) (Params, *mocks.MockService, *mocks.MockUserRepository, refdomain.Repository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	auth := mocks.NewMockService(ctrl)
	users := mocks.NewMockUserRepository(ctrl)

	conn := dbtest.Open(t, &refdomain.Branch{}, &refdomain.Store{})
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	refs := reference.NewRepository(conn, node, clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	return Params{
		Log:       zap.NewNop(),
		Config:    config.Config{Bootstrap: boot},
		Auth:      auth,
		Users:     users,
		Reference: refs,
	}, auth, users, refs
}

func TestBootstrapCreatesAdminOnEmptyInstall(t *testing.T) {
	p, auth, users, refs := newParams(t, config.BootstrapConfig{
		AdminEmail:    "admin@example.com",
		AdminPassword: "change-me-now",
		Branch:        "B1",
		Store:         "S1",
	})

	users.EXPECT().Count(gomock.Any()).Return(int64(0), nil)
	auth.EXPECT().CreateUser(gomock.Any(), authdomain.CreateUserRequest{
		Email:    "admin@example.com",
		Name:     defaultAdminName,
		Password: "change-me-now",
		Role:     authdomain.RoleAdmin,
	}).Return(&authdomain.User{ID: 42, Email: "admin@example.com"}, nil)

	require.NoError(t, Bootstrap(context.Background(), p))

	match, err := refs.Exists(context.Background(), "B1", "S1")
	require.NoError(t, err)
	assert.True(t, match.OK())
}

func TestBootstrapSkipsAdminWhenUsersExist(t *testing.T) {
	p, _, users, _ := newParams(t, config.BootstrapConfig{
		AdminEmail:    "admin@example.com",
		AdminPassword: "change-me-now",
	})

	users.EXPECT().Count(gomock.Any()).Return(int64(1), nil).Times(2)

	require.NoError(t, Bootstrap(context.Background(), p))
	require.NoError(t, Bootstrap(context.Background(), p))
}

func TestBootstrapRequiresPassword(t *testing.T) {
	p, _, users, _ := newParams(t, config.BootstrapConfig{AdminEmail: "admin@example.com"})
	users.EXPECT().Count(gomock.Any()).Return(int64(0), nil)

	assert.Error(t, Bootstrap(context.Background(), p))
}

func TestBootstrapNothingConfigured(t *testing.T) {
	p, _, _, _ := newParams(t, config.BootstrapConfig{})
	assert.NoError(t, Bootstrap(context.Background(), p))
}
