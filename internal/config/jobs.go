package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// JobSchedule describes how often the in-process scheduler triggers a batch job.
type JobSchedule struct {
	Name     string        `mapstructure:"name"`
	Interval time.Duration `mapstructure:"interval"`
	Enabled  bool          `mapstructure:"enabled"`
}

type JobsConfig struct {
	Schedules []JobSchedule `mapstructure:"schedules"`
}

func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		Schedules: []JobSchedule{
			{Name: "bir:aggregate-daily", Interval: time.Hour, Enabled: true},
			{Name: "dsr:update", Interval: 15 * time.Minute, Enabled: true},
			{Name: "sessions:prune", Interval: 30 * time.Minute, Enabled: true},
		},
	}
}

// JobScheduleHolder keeps the current schedule and swaps it when jobs.yml changes on disk.
type JobScheduleHolder struct {
	current atomic.Value // holds JobsConfig
}

func NewJobScheduleHolder(cfg Config, log *zap.Logger) (*JobScheduleHolder, error) {
	log = log.Named("config.jobs")

	v := viper.New()
	if path := strings.TrimSpace(cfg.JobsConfigPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("jobs")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/posreport")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("POSREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read jobs config: %w", err)
		}
		fromFile = false
	}

	jobsCfg := DefaultJobsConfig()
	if fromFile {
		var parsed JobsConfig
		if err := v.UnmarshalKey("jobs", &parsed); err != nil {
			return nil, fmt.Errorf("parse jobs config: %w", err)
		}
		if err := validateJobsConfig(parsed); err != nil {
			return nil, err
		}
		jobsCfg = parsed
	}

	holder := &JobScheduleHolder{}
	holder.current.Store(jobsCfg)

	if fromFile {
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated JobsConfig
			if err := v.UnmarshalKey("jobs", &updated); err != nil {
				log.Warn("jobs config reload failed", zap.Error(err))
				return
			}
			if err := validateJobsConfig(updated); err != nil {
				log.Warn("invalid jobs config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("jobs config reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

// NewStaticJobScheduleHolder returns a holder that never reloads.
func NewStaticJobScheduleHolder(cfg JobsConfig) *JobScheduleHolder {
	holder := &JobScheduleHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *JobScheduleHolder) Get() JobsConfig {
	return h.current.Load().(JobsConfig)
}

func validateJobsConfig(cfg JobsConfig) error {
	seen := make(map[string]struct{}, len(cfg.Schedules))
	for _, s := range cfg.Schedules {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return errors.New("jobs.schedules[].name cannot be empty")
		}
		if s.Enabled && s.Interval < time.Minute {
			return fmt.Errorf("jobs.schedules[%s].interval must be at least 1m", name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("jobs.schedules[%s] is duplicated", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
