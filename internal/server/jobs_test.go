package server

import (
	"net/http"
	"testing"

	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	"github.com/smallbiznis/posreport/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunJobRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "viewer@example.com", authdomain.RoleViewer)
	cookie := ts.login(t, "viewer@example.com", "browser")

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/jobs/" + jobs.DSRUpdate, cookie: cookie})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, "forbidden", errorType(t, rec))
	assert.Empty(t, ts.runner.calls)
}

func TestRunJobStatusFollowsExitCode(t *testing.T) {
	cases := []struct {
		exitCode int
		status   int
	}{
		{jobs.ExitOK, http.StatusOK},
		{jobs.ExitFailed, http.StatusInternalServerError},
		{jobs.ExitUnknownJob, http.StatusNotFound},
		{jobs.ExitBusy, http.StatusConflict},
	}

	ts := newTestServer(t)
	ts.createUser(t, "admin@example.com", authdomain.RoleAdmin)
	cookie := ts.login(t, "admin@example.com", "browser")

	for _, tc := range cases {
		ts.runner.result = jobs.Result{ExitCode: tc.exitCode, Output: "done\n"}
		rec := ts.do(t, request{method: http.MethodPost, path: "/api/jobs/" + jobs.BIRAggregateDaily, cookie: cookie})
		require.Equal(t, tc.status, rec.Code, "exit code %d", tc.exitCode)

		body := decode(t, rec)
		assert.Equal(t, jobs.BIRAggregateDaily, body["job"])
		assert.Equal(t, float64(tc.exitCode), body["exit_code"])
		assert.Equal(t, "done\n", body["output"])
	}
}

func TestRunJobOptions(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "admin@example.com", authdomain.RoleAdmin)
	cookie := ts.login(t, "admin@example.com", "browser")

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/jobs/" + jobs.DSRUpdate, cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.runner.opts, 1)
	assert.Equal(t, "2024-01-01", ts.runner.opts[0].FromDate())
	assert.Equal(t, "2024-01-02", ts.runner.opts[0].ToDate())

	rec = ts.do(t, request{
		method: http.MethodPost,
		path:   "/api/jobs/" + jobs.DSRUpdate,
		cookie: cookie,
		body:   map[string]any{"from": "2023-12-01", "to": "2023-12-31", "branch": "B1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.runner.opts, 2)
	assert.Equal(t, "2023-12-01", ts.runner.opts[1].FromDate())
	assert.Equal(t, "2023-12-31", ts.runner.opts[1].ToDate())
	assert.Equal(t, "B1", ts.runner.opts[1].Branch)

	rec = ts.do(t, request{
		method: http.MethodPost,
		path:   "/api/jobs/" + jobs.DSRUpdate,
		cookie: cookie,
		body:   map[string]any{"from": "12/01/2023"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, fieldErrors(t, rec), "from")
	assert.Len(t, ts.runner.calls, 2)
}

func TestListJobs(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "admin@example.com", authdomain.RoleAdmin)
	cookie := ts.login(t, "admin@example.com", "browser")

	rec := ts.do(t, request{method: http.MethodGet, path: "/api/jobs", cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{}, decode(t, rec)["data"])
}

func TestReferenceEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "viewer@example.com", authdomain.RoleViewer)
	cookie := ts.login(t, "viewer@example.com", "browser")

	rec := ts.do(t, request{method: http.MethodGet, path: "/api/reference/branches", cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	branches := decode(t, rec)["data"].([]any)
	require.Len(t, branches, 1)
	assert.Equal(t, "B1", branches[0].(map[string]any)["code"])

	rec = ts.do(t, request{method: http.MethodGet, path: "/api/reference/branches/B1/stores", cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stores := decode(t, rec)["data"].([]any)
	require.Len(t, stores, 1)
	assert.Equal(t, "S1", stores[0].(map[string]any)["code"])
}
