package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/posreport/internal/apikey"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	"github.com/smallbiznis/posreport/internal/auth"
	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	"github.com/smallbiznis/posreport/internal/auth/session"
	"github.com/smallbiznis/posreport/internal/authorization"
	"github.com/smallbiznis/posreport/internal/blobstore"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"github.com/smallbiznis/posreport/internal/ingestion"
	ingestiondomain "github.com/smallbiznis/posreport/internal/ingestion/domain"
	"github.com/smallbiznis/posreport/internal/jobs"
	"github.com/smallbiznis/posreport/internal/observability"
	obslogger "github.com/smallbiznis/posreport/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/posreport/internal/observability/metrics"
	obstracing "github.com/smallbiznis/posreport/internal/observability/tracing"
	"github.com/smallbiznis/posreport/internal/ratelimit"
	"github.com/smallbiznis/posreport/internal/reference"
	refdomain "github.com/smallbiznis/posreport/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	auth.Module,
	reference.Module,
	apikey.Module,
	blobstore.Module,
	ingestion.Module,
	ratelimit.Module,
	jobs.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// JobRunner is the part of jobs.Runner the operator endpoints use.
type JobRunner interface {
	Run(ctx context.Context, name string, opts jobs.Options) jobs.Result
	Jobs() []jobs.Job
}

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	clock         clock.Clock
	authsvc       authdomain.Service
	sessions      *session.Manager
	authzSvc      authorization.Service
	ingestSvc     ingestiondomain.Service
	terminalKeys  apikeydomain.Service
	refrepo       refdomain.Repository
	jobs          JobRunner
	ingestLimiter *ratelimit.IngestLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Clock         clock.Clock
	Authsvc       authdomain.Service
	Sessions      *session.Manager
	AuthzSvc      authorization.Service
	IngestSvc     ingestiondomain.Service
	TerminalKeys  apikeydomain.Service
	Refrepo       refdomain.Repository
	Jobs          *jobs.Runner
	IngestLimiter *ratelimit.IngestLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		clock:         p.Clock,
		authsvc:       p.Authsvc,
		sessions:      p.Sessions,
		authzSvc:      p.AuthzSvc,
		ingestSvc:     p.IngestSvc,
		terminalKeys:  p.TerminalKeys,
		refrepo:       p.Refrepo,
		jobs:          p.Jobs,
		ingestLimiter: p.IngestLimiter,
		obsMetrics:    p.ObsMetrics,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) RegisterRoutes() {
	r := s.engine

	authGroup := r.Group("/auth")
	authGroup.POST("/login", s.Login)
	authGroup.POST("/logout", s.Logout)
	authGroup.GET("/session", s.SessionStatus)
	authGroup.GET("/me", s.SessionGate(), s.AuthRequired(), s.Me)

	pos := r.Group("/api/pos", s.APIKeyRequired())
	pos.POST("/headers", s.IngestHeader)
	pos.POST("/items", s.IngestItem)
	pos.POST("/payments", s.IngestPayment)
	pos.POST("/discounts", s.IngestDiscount)
	pos.POST("/receipts", s.IngestReceipt)
	pos.POST("/zreads", s.IngestZRead)

	api := r.Group("/api", s.SessionGate(), s.AuthRequired())
	api.GET("/documents/:id", s.authorize(authorization.ObjectDocuments, authorization.ActionRead), s.GetDocument)
	api.GET("/reference/branches", s.authorize(authorization.ObjectReference, authorization.ActionRead), s.ListBranches)
	api.GET("/reference/branches/:code/stores", s.authorize(authorization.ObjectReference, authorization.ActionRead), s.ListStores)
	api.GET("/jobs", s.authorize(authorization.ObjectJobs, authorization.ActionRun), s.ListJobs)
	api.POST("/jobs/:name", s.authorize(authorization.ObjectJobs, authorization.ActionRun), s.RunJob)

	keys := api.Group("/terminal-keys", s.authorize(authorization.ObjectTerminalKeys, authorization.ActionManage))
	keys.GET("", s.ListTerminalKeys)
	keys.POST("", s.CreateTerminalKey)
	keys.POST("/:key_id/rotate", s.RotateTerminalKey)
	keys.DELETE("/:key_id", s.RevokeTerminalKey)
}
