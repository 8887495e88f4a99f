// Package scheduler triggers batch jobs in-process on the intervals from jobs.yml.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"github.com/smallbiznis/posreport/internal/jobs"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tickInterval = time.Minute

type JobRunner interface {
	Run(ctx context.Context, name string, opts jobs.Options) jobs.Result
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Runner    *jobs.Runner
	Schedules *config.JobScheduleHolder
}

type Scheduler struct {
	runner    JobRunner
	schedules *config.JobScheduleHolder
	clock     clock.Clock
	log       *zap.Logger
	tick      time.Duration

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func New(p Params) *Scheduler {
	return newScheduler(p.Runner, p.Schedules, p.Clock, p.Log)
}

func newScheduler(runner JobRunner, schedules *config.JobScheduleHolder, clk clock.Clock, log *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:    runner,
		schedules: schedules,
		clock:     clk,
		log:       log.Named("scheduler"),
		tick:      tickInterval,
		lastRun:   make(map[string]time.Time),
	}
}

// RunOnce runs every enabled schedule whose interval has elapsed. A schedule seen for
// the first time is due immediately. Schedules are re-read on every call so edits to
// jobs.yml apply without a restart.
func (s *Scheduler) RunOnce(ctx context.Context) []jobs.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var results []jobs.Result
	for _, sched := range s.schedules.Get().Schedules {
		if !sched.Enabled || sched.Interval <= 0 {
			continue
		}
		if last, ok := s.lastRun[sched.Name]; ok && now.Sub(last) < sched.Interval {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		res := s.runner.Run(ctx, sched.Name, jobs.DefaultOptions(now))
		s.lastRun[sched.Name] = now
		if res.ExitCode != jobs.ExitOK {
			s.log.Warn("scheduled job failed",
				zap.String("job", sched.Name),
				zap.Int("exit_code", res.ExitCode),
				zap.Error(res.Err),
			)
		}
		results = append(results, res)
	}
	return results
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
