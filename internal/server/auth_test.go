package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	"github.com/smallbiznis/posreport/internal/auth/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginThenMe(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@example.com", authdomain.RoleViewer)

	rec := ts.do(t, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]any{"email": "ana@example.com", "password": testPassword},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "/dashboard", body["redirect"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "ana@example.com", user["email"])

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Zero(t, cookie.MaxAge, "without remember the cookie lives for the browser session")

	rec = ts.do(t, request{
		method:  http.MethodGet,
		path:    "/auth/me",
		cookie:  cookie,
		headers: map[string]string{"Accept": "application/json"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "ana@example.com", me["email"])
}

func TestLoginRememberSetsPersistentCookie(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@example.com", authdomain.RoleViewer)

	rec := ts.do(t, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]any{"email": "ana@example.com", "password": testPassword, "remember": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestSecondLoginInvalidatesFirstClient(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@example.com", authdomain.RoleViewer)

	first := ts.login(t, "ana@example.com", "client-x")
	second := ts.login(t, "ana@example.com", "client-y")
	require.NotEqual(t, first.Value, second.Value)

	t.Run("api caller gets 401", func(t *testing.T) {
		rec := ts.do(t, request{method: http.MethodGet, path: "/api/reference/branches", cookie: first})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "session_invalidated", errorType(t, rec))

		cleared := sessionCookie(rec)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
		assert.Negative(t, cleared.MaxAge)
	})

	t.Run("browser is sent to login", func(t *testing.T) {
		rec := ts.do(t, request{
			method:  http.MethodGet,
			path:    "/auth/me",
			cookie:  first,
			headers: map[string]string{"Accept": "text/html,application/xhtml+xml"},
		})
		require.Equal(t, http.StatusFound, rec.Code)

		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/login", location.Path)
		assert.Equal(t, sessionInvalidatedMessage, location.Query().Get("message"))
	})

	t.Run("newest client keeps working", func(t *testing.T) {
		rec := ts.do(t, request{method: http.MethodGet, path: "/api/reference/branches", cookie: second})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func TestSessionStatusNeverRejects(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@example.com", authdomain.RoleViewer)

	rec := ts.do(t, request{method: http.MethodGet, path: "/auth/session"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["authenticated"])

	first := ts.login(t, "ana@example.com", "client-x")
	rec = ts.do(t, request{method: http.MethodGet, path: "/auth/session", cookie: first})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["authenticated"])

	ts.login(t, "ana@example.com", "client-y")
	rec = ts.do(t, request{method: http.MethodGet, path: "/auth/session", cookie: first})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["authenticated"])
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@example.com", authdomain.RoleViewer)

	rec := ts.do(t, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]any{"email": "ana@example.com", "password": "wrong"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	errs := fieldErrors(t, rec)
	assert.Equal(t, []any{invalidCredentialsMessage}, errs["email"])
	assert.Nil(t, sessionCookie(rec))
}

func TestLoginRequiresFields(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]any{}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	errs := fieldErrors(t, rec)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
}

func TestLoginForm(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@example.com", authdomain.RoleViewer)

	post := func(password string) *http.Response {
		form := url.Values{"email": {"ana@example.com"}, "password": {password}, "remember": {"on"}}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		return rec.Result()
	}

	res := post(testPassword)
	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/dashboard", res.Header.Get("Location"))
	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == ts.srv.sessions.CookieName() {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Positive(t, cookie.MaxAge)

	res = post("wrong")
	require.Equal(t, http.StatusFound, res.StatusCode)
	location, err := url.Parse(res.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", location.Path)
	assert.Equal(t, invalidCredentialsMessage, location.Query().Get("message"))
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@example.com", authdomain.RoleViewer)
	cookie := ts.login(t, "ana@example.com", "client-x")

	rec := ts.do(t, request{
		method:  http.MethodPost,
		path:    "/auth/logout",
		cookie:  cookie,
		headers: map[string]string{"Accept": "application/json"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	rec = ts.do(t, request{method: http.MethodGet, path: "/auth/session", cookie: cookie})
	assert.Equal(t, false, decode(t, rec)["authenticated"])
}

func TestStaleLogoutKeepsNewerSession(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "ana@example.com", authdomain.RoleViewer)

	stale := ts.login(t, "ana@example.com", "client-x")
	current := ts.login(t, "ana@example.com", "client-y")

	rec := ts.do(t, request{method: http.MethodPost, path: "/auth/logout", cookie: stale})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = ts.do(t, request{method: http.MethodGet, path: "/auth/session", cookie: current})
	assert.Equal(t, true, decode(t, rec)["authenticated"])
}

func TestAuthRequiredWithoutCookie(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, request{method: http.MethodGet, path: "/api/jobs"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorType(t, rec))

	rec = ts.do(t, request{method: http.MethodGet, path: "/auth/me", headers: map[string]string{"Accept": "text/html"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login?message="))
}

func TestGateDeniesWhenStoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	authsvc := mocks.NewMockService(ctrl)
	authsvc.EXPECT().
		Authenticate(gomock.Any(), "1.token").
		Return(nil, fmt.Errorf("%w: connection refused", authdomain.ErrSessionStoreUnavailable))

	ts := newTestServer(t, func(s *Server) { s.authsvc = authsvc })

	rec := ts.do(t, request{
		method: http.MethodGet,
		path:   "/api/reference/branches",
		cookie: &http.Cookie{Name: ts.srv.sessions.CookieName(), Value: "1.token"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "session_invalidated", errorType(t, rec))
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestLogoutSurfacesStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	authsvc := mocks.NewMockService(ctrl)
	authsvc.EXPECT().
		Logout(gomock.Any(), "1.token").
		Return(fmt.Errorf("%w: timeout", authdomain.ErrSessionStoreUnavailable))

	ts := newTestServer(t, func(s *Server) { s.authsvc = authsvc })

	rec := ts.do(t, request{
		method:  http.MethodPost,
		path:    "/auth/logout",
		cookie:  &http.Cookie{Name: ts.srv.sessions.CookieName(), Value: "1.token"},
		headers: map[string]string{"Accept": "application/json"},
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotNil(t, sessionCookie(rec), "the cookie is dropped even when the store is down")
}
