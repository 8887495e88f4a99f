package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/auth"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"github.com/smallbiznis/posreport/internal/jobs"
	"github.com/smallbiznis/posreport/internal/observability"
	"github.com/smallbiznis/posreport/internal/ratelimit"
	"github.com/smallbiznis/posreport/internal/scheduler"
	"github.com/smallbiznis/posreport/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Job dependencies; session pruning needs the auth service.
		ratelimit.Module,
		auth.Module,
		jobs.Module,

		// No server module! This process always schedules, whatever SCHEDULER_ENABLED says.
		fx.Decorate(func(cfg config.Config) config.Config {
			cfg.SchedulerOn = true
			return cfg
		}),
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
