package reference

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/cache"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"github.com/smallbiznis/posreport/internal/reference/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("reference.repository",
	fx.Provide(provideRepository),
)

func provideRepository(db *gorm.DB, genID *snowflake.Node, clk clock.Clock, cfg config.Config) domain.Repository {
	return cache.NewReferenceCache(NewRepository(db, genID, clk), cfg.ReferenceCacheTTL)
}
