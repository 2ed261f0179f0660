package rating

import (
	"github.com/smallbiznis/appraisal/internal/rating/repository"
	"github.com/smallbiznis/appraisal/internal/rating/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rating.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
