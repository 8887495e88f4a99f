package auth

import (
	"github.com/smallbiznis/posreport/internal/auth/repository"
	"github.com/smallbiznis/posreport/internal/auth/service"
	"github.com/smallbiznis/posreport/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
)
