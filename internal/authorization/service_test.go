package authorization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := newEnforcer(nil)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeRoles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		role, object, action string
		allowed              bool
	}{
		{"admin", ObjectJobs, ActionRun, true},
		{"manager", ObjectJobs, ActionRun, false},
		{"viewer", ObjectJobs, ActionRun, false},
		{"viewer", ObjectDocuments, ActionRead, true},
		{"manager", ObjectDocuments, ActionRead, true},
		{"Admin", ObjectDocuments, ActionRead, true},
		{"cashier", ObjectDocuments, ActionRead, false},
		{"admin", ObjectTerminalKeys, ActionManage, true},
		{"manager", ObjectTerminalKeys, ActionManage, false},
	}
	for _, tc := range cases {
		err := svc.Authorize(ctx, tc.role, tc.object, tc.action)
		if tc.allowed {
			assert.NoError(t, err, "%s %s %s", tc.role, tc.object, tc.action)
		} else {
			assert.ErrorIs(t, err, ErrForbidden, "%s %s %s", tc.role, tc.object, tc.action)
		}
	}
}

func TestAuthorizeRejectsBlankInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", ObjectJobs, ActionRun), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, "admin", " ", ActionRun), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "admin", ObjectJobs, ""), ErrInvalidAction)
}
