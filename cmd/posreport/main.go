package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"github.com/smallbiznis/posreport/internal/migration"
	"github.com/smallbiznis/posreport/internal/observability"
	"github.com/smallbiznis/posreport/internal/scheduler"
	"github.com/smallbiznis/posreport/internal/server"
	"github.com/smallbiznis/posreport/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Schema and first-run data before anything serves traffic
		migration.Module,

		server.Module,
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
