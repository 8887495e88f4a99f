package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	obslogger "github.com/smallbiznis/posreport/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/posreport/internal/observability/metrics"
	"github.com/smallbiznis/posreport/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultJobTimeout = 30 * time.Minute

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	GenID   *snowflake.Node
	Clock   clock.Clock
	Jobs    []Job               `group:"jobs"`
	Locker  *ratelimit.Locker   `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Result is what a caller gets back from one run. Output is the text the job wrote,
// followed by the error line when it failed.
type Result struct {
	RunID      snowflake.ID `json:"run_id,string"`
	Job        string       `json:"job"`
	ExitCode   int          `json:"exit_code"`
	Output     string       `json:"output"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Err        error        `json:"-"`
}

type Runner struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	locker  *ratelimit.Locker
	metrics *obsmetrics.Metrics
	timeout time.Duration
	jobs    map[string]Job
}

func NewRunner(p Params) *Runner {
	timeout := p.Config.RateLimit.JobLockTTL
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	r := &Runner{
		db:      p.DB,
		log:     p.Log.Named("jobs"),
		genID:   p.GenID,
		clock:   p.Clock,
		locker:  p.Locker,
		metrics: p.Metrics,
		timeout: timeout,
		jobs:    make(map[string]Job, len(p.Jobs)),
	}
	for _, job := range p.Jobs {
		r.jobs[job.Name()] = job
	}
	return r
}

// Jobs returns the registered jobs sorted by name.
func (r *Runner) Jobs() []Job {
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Run executes one job and records it in job_runs. It never panics on job failure;
// the outcome is carried in the exit code.
func (r *Runner) Run(ctx context.Context, name string, opts Options) Result {
	res := Result{
		RunID:     r.genID.Generate(),
		Job:       name,
		StartedAt: r.clock.Now(),
	}
	log := obslogger.WithContext(ctx, r.log).With(
		zap.String("job", name),
		zap.String("run_id", res.RunID.String()),
	)

	var out bytes.Buffer
	res.ExitCode, res.Err = r.run(ctx, log, name, opts, &out)
	if res.Err != nil {
		fmt.Fprintf(&out, "error: %v\n", res.Err)
	}
	res.Output = out.String()
	res.FinishedAt = r.clock.Now()

	elapsed := res.FinishedAt.Sub(res.StartedAt)
	metricName := name
	if res.ExitCode == ExitUnknownJob {
		metricName = "unknown"
	}
	r.metrics.RecordJobRun(metricName, res.ExitCode, elapsed)
	r.record(ctx, log, res, opts)

	if res.ExitCode == ExitOK {
		log.Info("job finished", zap.Duration("elapsed", elapsed))
	} else {
		log.Warn("job failed", zap.Int("exit_code", res.ExitCode), zap.Error(res.Err))
	}
	return res
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, name string, opts Options, out *bytes.Buffer) (int, error) {
	job, ok := r.jobs[name]
	if !ok {
		return ExitUnknownJob, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	if r.locker.Enabled() {
		key := lockKey(name)
		token, acquired, err := r.locker.TryLock(ctx, key, r.timeout)
		switch {
		case err != nil:
			log.Warn("job lock unavailable, running unlocked", zap.Error(err))
		case !acquired:
			return ExitBusy, ErrJobRunning
		default:
			defer func() {
				if err := r.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn("job lock release failed", zap.Error(err))
				}
			}()
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log.Info("job started",
		zap.String("from", opts.FromDate()),
		zap.String("to", opts.ToDate()),
		zap.String("branch", opts.Branch),
		zap.String("store", opts.Store),
	)
	if err := job.Run(jobCtx, opts, out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ExitFailed, fmt.Errorf("timed out after %s: %w", r.timeout, err)
		}
		return ExitFailed, err
	}
	return ExitOK, nil
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, res Result, opts Options) {
	row := JobRun{
		ID:         res.RunID,
		Name:       res.Job,
		Options:    datatypes.JSONMap(opts.Map()),
		ExitCode:   res.ExitCode,
		Output:     res.Output,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if err := r.db.WithContext(context.WithoutCancel(ctx)).Create(&row).Error; err != nil {
		log.Warn("job run not recorded", zap.Error(err))
	}
}

func lockKey(name string) string {
	return "posreport:job:" + name
}
