package auth

import (
	"github.com/smallbiznis/crewplan/internal/auth/repository"
	"github.com/smallbiznis/crewplan/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
