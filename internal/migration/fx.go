package migration

import (
	"context"

	"github.com/smallbiznis/posreport/internal/config"
	"github.com/smallbiznis/posreport/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, bootstrap seed.Params) error {
		if err := Run(conn, cfg.DBType); err != nil {
			return err
		}
		return seed.Bootstrap(context.Background(), bootstrap)
	}),
)
