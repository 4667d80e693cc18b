package project

import (
	"github.com/smallbiznis/crewplan/internal/project/repository"
	"github.com/smallbiznis/crewplan/internal/project/service"
	"go.uber.org/fx"
)

var Module = fx.Module("project.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
