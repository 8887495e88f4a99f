package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures metric labels.
type Config struct {
	ServiceName string
	Environment string
}

const (
	SessionResultValid        = "valid"
	SessionResultInvalid      = "invalid"
	SessionResultStoreFailure = "store_failure"

	LoginResultSuccess      = "success"
	LoginResultInvalid      = "invalid_credentials"
	LoginResultValidation   = "validation_error"
	LoginResultThrottled    = "throttled"
	LoginResultStoreFailure = "store_failure"
)

// Metrics exposes the application instruments served on /metrics.
type Metrics struct {
	ingestTotal        *prometheus.CounterVec
	ingestDuration     *prometheus.HistogramVec
	dimensionsCreated  *prometheus.CounterVec
	sessionValidations *prometheus.CounterVec
	logins             *prometheus.CounterVec
	jobRuns            *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	rateLimitDenied    *prometheus.CounterVec
}

// New registers the instruments on registerer (the default registry when nil).
func New(cfg Config, registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "posreport"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": serviceName, "env": environment}

	m := &Metrics{
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posreport_ingest_total",
			Help:        "POS ingestion requests by record type and outcome.",
			ConstLabels: constLabels,
		}, []string{"record_type", "outcome"}),
		ingestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "posreport_ingest_duration_seconds",
			Help:        "POS ingestion transaction latency by record type.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"record_type"}),
		dimensionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posreport_dimension_created_total",
			Help:        "Categories and products auto-created from item ingestion.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		sessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posreport_session_validation_total",
			Help:        "Session gate verdicts.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posreport_login_total",
			Help:        "Login attempts by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posreport_job_runs_total",
			Help:        "Batch job runs by name and exit code.",
			ConstLabels: constLabels,
		}, []string{"job", "exit_code"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "posreport_job_duration_seconds",
			Help:        "Batch job latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		}, []string{"job"}),
		rateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posreport_rate_limit_denied_total",
			Help:        "Requests denied by a rate limiter.",
			ConstLabels: constLabels,
		}, []string{"limiter"}),
	}

	collectors := []prometheus.Collector{
		m.ingestTotal,
		m.ingestDuration,
		m.dimensionsCreated,
		m.sessionValidations,
		m.logins,
		m.jobRuns,
		m.jobDuration,
		m.rateLimitDenied,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordIngest(recordType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(recordType, outcome).Inc()
	m.ingestDuration.WithLabelValues(recordType).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordDimensionCreated(kind string) {
	if m == nil {
		return
	}
	m.dimensionsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordSessionValidation(result string) {
	if m == nil {
		return
	}
	m.sessionValidations.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordJobRun(job string, exitCode int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, strconv.Itoa(exitCode)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRateLimitDenied(limiter string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(limiter).Inc()
}
