package auth

import (
	"github.com/smallbiznis/appraisal/internal/auth/repository"
	"github.com/smallbiznis/appraisal/internal/auth/service"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	token.Module,
	session.Module,
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
