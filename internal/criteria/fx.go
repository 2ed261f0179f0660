package criteria

import (
	"github.com/smallbiznis/appraisal/internal/criteria/repository"
	"github.com/smallbiznis/appraisal/internal/criteria/service"
	"go.uber.org/fx"
)

var Module = fx.Module("criteria.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
