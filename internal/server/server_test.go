package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	apikeyrepo "github.com/smallbiznis/posreport/internal/apikey/repository"
	apikeyservice "github.com/smallbiznis/posreport/internal/apikey/service"
	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	authrepo "github.com/smallbiznis/posreport/internal/auth/repository"
	authservice "github.com/smallbiznis/posreport/internal/auth/service"
	"github.com/smallbiznis/posreport/internal/auth/session"
	"github.com/smallbiznis/posreport/internal/authorization"
	"github.com/smallbiznis/posreport/internal/blobstore"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	ingestiondomain "github.com/smallbiznis/posreport/internal/ingestion/domain"
	ingestionservice "github.com/smallbiznis/posreport/internal/ingestion/service"
	"github.com/smallbiznis/posreport/internal/jobs"
	"github.com/smallbiznis/posreport/internal/migration"
	"github.com/smallbiznis/posreport/internal/reference"
	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
	"github.com/smallbiznis/posreport/pkg/db/dbtest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testPassword = "correct-horse"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// roleAuthorizer mirrors the default policy: everyone reads, only admins run jobs and
// manage terminal keys.
type roleAuthorizer struct{}

func (roleAuthorizer) Authorize(_ context.Context, role, object, _ string) error {
	adminOnly := object == authorization.ObjectJobs || object == authorization.ObjectTerminalKeys
	if adminOnly && role != authdomain.RoleAdmin {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeRunner struct {
	calls  []string
	opts   []jobs.Options
	result jobs.Result
}

func (f *fakeRunner) Run(_ context.Context, name string, opts jobs.Options) jobs.Result {
	f.calls = append(f.calls, name)
	f.opts = append(f.opts, opts)
	res := f.result
	res.Job = name
	return res
}

func (f *fakeRunner) Jobs() []jobs.Job { return nil }

type testServer struct {
	router *gin.Engine
	srv    *Server
	db     *gorm.DB
	clock  *clock.FakeClock
	auth   authdomain.Service
	refs   refdomain.Repository
	keys   apikeydomain.Service
	runner *fakeRunner
	// posKey is the bearer key of terminal B1/S1/T1, sent on /api/pos requests that set
	// no Authorization header of their own.
	posKey string
}

type serverOption func(*Server)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	conn := dbtest.Open(t, migration.Models()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))

	cfg := config.Config{
		AuthLoginPath:          "/login",
		AuthDashboardPath:      "/dashboard",
		AuthSessionIdleTimeout: 4 * time.Hour,
		AuthRememberFor:        30 * 24 * time.Hour,
		BlobStorageDir:         t.TempDir(),
	}

	users, sessions := authrepo.New(conn, node, clk)
	authsvc := authservice.New(authservice.Params{
		Log:      zap.NewNop(),
		Config:   cfg,
		Users:    users,
		Sessions: sessions,
		Clock:    clk,
		GenID:    node,
	})

	refs := reference.NewRepository(conn, node, clk)
	require.NoError(t, refs.EnsureBranchStore(context.Background(), "B1", "S1"))

	blobs, err := blobstore.NewFileStore(cfg, clk, zap.NewNop())
	require.NoError(t, err)
	ingest := ingestionservice.New(ingestionservice.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Reference: refs,
		Blobs:     blobs,
	})

	keys := apikeyservice.New(apikeyservice.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      apikeyrepo.Provide(),
		Reference: refs,
	})
	secret, err := keys.Create(context.Background(), apikeydomain.CreateRequest{
		Name: "Counter 1", Branch: "B1", Store: "S1", Terminal: "T1",
	})
	require.NoError(t, err)

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	runner := &fakeRunner{}
	srv := &Server{
		engine:       router,
		cfg:          cfg,
		log:          zap.NewNop(),
		clock:        clk,
		authsvc:      authsvc,
		sessions:     session.NewManager(cfg, clk),
		authzSvc:     roleAuthorizer{},
		ingestSvc:    ingest,
		terminalKeys: keys,
		refrepo:      refs,
		jobs:         runner,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.RegisterRoutes()

	return &testServer{
		router: router,
		srv:    srv,
		db:     conn,
		clock:  clk,
		auth:   authsvc,
		refs:   refs,
		keys:   keys,
		runner: runner,
		posKey: secret.APIKey,
	}
}

func (ts *testServer) createUser(t *testing.T, email, role string) {
	t.Helper()
	_, err := ts.auth.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    email,
		Password: testPassword,
		Role:     role,
	})
	require.NoError(t, err)
}

type request struct {
	method  string
	path    string
	body    any
	cookie  *http.Cookie
	headers map[string]string
}

func (ts *testServer) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	switch v := r.body.(type) {
	case nil:
		body = bytes.NewReader(nil)
	case string:
		body = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if _, ok := r.headers["Authorization"]; !ok && strings.HasPrefix(r.path, "/api/pos/") {
		req.Header.Set("Authorization", "Bearer "+ts.posKey)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// login signs in through the JSON endpoint and returns the session cookie.
func (ts *testServer) login(t *testing.T, email, userAgent string) *http.Cookie {
	t.Helper()
	rec := ts.do(t, request{
		method:  http.MethodPost,
		path:    "/auth/login",
		body:    map[string]any{"email": email, "password": testPassword},
		headers: map[string]string{"User-Agent": userAgent},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	require.NotEmpty(t, cookie.Value)
	return cookie
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	payload, ok := decode(t, rec)["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return payload["type"].(string)
}

func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := decode(t, rec)
	require.Equal(t, invalidDataMessage, body["message"])
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return errs
}

var _ ingestiondomain.Service = (*failingIngest)(nil)

// failingIngest fails every header push as a storage outage would.
type failingIngest struct {
	ingestiondomain.Service
}

func (failingIngest) IngestHeader(context.Context, ingestiondomain.HeaderRequest) (*ingestiondomain.Result[*ingestiondomain.Header], error) {
	return nil, ingestiondomain.ErrIngestionFailed
}
