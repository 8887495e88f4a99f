package server

import (
	"net/http"
	"testing"

	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalKeyLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "admin@example.com", authdomain.RoleAdmin)
	cookie := ts.login(t, "admin@example.com", "browser")

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/terminal-keys", cookie: cookie, body: map[string]any{
		"name": "Counter 2", "branch": "B1", "store": "S1", "terminal": "T2",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	secret := decode(t, rec)["data"].(map[string]any)
	keyID := secret["key_id"].(string)
	bearer := "Bearer " + secret["api_key"].(string)

	payload := headerPayload()
	payload["terminal"] = "T2"
	rec = ts.do(t, request{
		method: http.MethodPost, path: "/api/pos/headers", body: payload,
		headers: map[string]string{"Authorization": bearer},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, request{method: http.MethodGet, path: "/api/terminal-keys", cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode(t, rec)["data"].([]any)
	assert.Len(t, listed, 2)
	for _, item := range listed {
		assert.NotContains(t, item.(map[string]any), "api_key")
		assert.NotContains(t, item.(map[string]any), "key_hash")
	}

	rec = ts.do(t, request{method: http.MethodDelete, path: "/api/terminal-keys/" + keyID, cookie: cookie})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, request{
		method: http.MethodPost, path: "/api/pos/headers", body: payload,
		headers: map[string]string{"Authorization": bearer},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, request{method: http.MethodPost, path: "/api/terminal-keys/" + keyID + "/rotate", cookie: cookie})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTerminalKeyCreateValidates(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "admin@example.com", authdomain.RoleAdmin)
	cookie := ts.login(t, "admin@example.com", "browser")

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/terminal-keys", cookie: cookie, body: map[string]any{
		"name": "Counter 9", "branch": "B9", "store": "S1", "terminal": " ",
	}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	errs := fieldErrors(t, rec)
	assert.Contains(t, errs, "branch")
	assert.Contains(t, errs, "terminal")
}

func TestTerminalKeysRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "viewer@example.com", authdomain.RoleViewer)
	cookie := ts.login(t, "viewer@example.com", "browser")

	rec := ts.do(t, request{method: http.MethodPost, path: "/api/terminal-keys", cookie: cookie, body: map[string]any{
		"name": "Counter 2", "branch": "B1", "store": "S1", "terminal": "T2",
	}})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, "forbidden", errorType(t, rec))

	rec = ts.do(t, request{method: http.MethodGet, path: "/api/terminal-keys"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
