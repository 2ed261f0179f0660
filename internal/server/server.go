package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/appraisal/internal/auth"
	authdomain "github.com/smallbiznis/appraisal/internal/auth/domain"
	"github.com/smallbiznis/appraisal/internal/auth/session"
	"github.com/smallbiznis/appraisal/internal/auth/token"
	"github.com/smallbiznis/appraisal/internal/authorization"
	"github.com/smallbiznis/appraisal/internal/config"
	"github.com/smallbiznis/appraisal/internal/criteria"
	criteriadomain "github.com/smallbiznis/appraisal/internal/criteria/domain"
	"github.com/smallbiznis/appraisal/internal/invitation"
	invitationdomain "github.com/smallbiznis/appraisal/internal/invitation/domain"
	"github.com/smallbiznis/appraisal/internal/migration"
	"github.com/smallbiznis/appraisal/internal/observability"
	obslogger "github.com/smallbiznis/appraisal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/appraisal/internal/observability/metrics"
	obstracing "github.com/smallbiznis/appraisal/internal/observability/tracing"
	"github.com/smallbiznis/appraisal/internal/organization"
	orgdomain "github.com/smallbiznis/appraisal/internal/organization/domain"
	"github.com/smallbiznis/appraisal/internal/providers"
	"github.com/smallbiznis/appraisal/internal/ratelimit"
	"github.com/smallbiznis/appraisal/internal/rating"
	ratingdomain "github.com/smallbiznis/appraisal/internal/rating/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	migration.Module,
	fx.Provide(NewEngine),
	authorization.Module,
	auth.Module,
	organization.Module,
	criteria.Module,
	rating.Module,
	invitation.Module,
	providers.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware(cfg.IsProduction()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	sessions      *session.Manager
	tokens        *token.Codec
	authz         authorization.Service
	authSvc       authdomain.Service
	orgSvc        orgdomain.Service
	criteriaSvc   criteriadomain.Service
	ratingSvc     ratingdomain.Service
	invitationSvc invitationdomain.Service
	authLimiter   *ratelimit.AuthLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Sessions      *session.Manager
	Tokens        *token.Codec
	Authz         authorization.Service
	AuthSvc       authdomain.Service
	OrgSvc        orgdomain.Service
	CriteriaSvc   criteriadomain.Service
	RatingSvc     ratingdomain.Service
	InvitationSvc invitationdomain.Service
	AuthLimiter   *ratelimit.AuthLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		sessions:      p.Sessions,
		tokens:        p.Tokens,
		authz:         p.Authz,
		authSvc:       p.AuthSvc,
		orgSvc:        p.OrgSvc,
		criteriaSvc:   p.CriteriaSvc,
		ratingSvc:     p.RatingSvc,
		invitationSvc: p.InvitationSvc,
		authLimiter:   p.AuthLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerOrganizationRoutes()
	svc.registerUserRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/register", s.AuthRateLimit("register"), s.Register)
	auth.POST("/login", s.AuthRateLimit("login"), s.Login)
	auth.POST("/accept-invite", s.AuthRateLimit("accept-invite"), s.AcceptInvite)
	auth.GET("/whoami", s.Guard(GuardOptions{}), s.WhoAmI)
}

func (s *Server) registerOrganizationRoutes() {
	org := s.engine.Group("/organization")

	org.POST("", s.Guard(GuardOptions{}), s.CreateOrganization)
	org.GET("", s.Guard(GuardOptions{}), s.ListOrganizations)
	org.DELETE("/:id", s.Guard(GuardOptions{}), s.DeleteOrganization)

	inviters := GuardOptions{OrgParam: "id", Permissions: requirePermissions("ORGANIZATION:*:*", "ORGANIZATION:INVITE:*")}
	org.POST("/:id/invite", s.Guard(inviters), s.InviteMember)
	org.POST("/:id/invite/resend", s.Guard(inviters), s.ResendInvite)

	// -------- Members --------
	org.POST("/:id/assign-employees-to-supervisor",
		s.Guard(GuardOptions{OrgParam: "id", Permissions: requirePermissions("USER:*:*", "USER:ASSIGN:ASSIGNED")}),
		s.AssignEmployees,
	)
	userReaders := GuardOptions{OrgParam: "id", Permissions: requirePermissions("USER:READ:*", "USER:*:*")}
	org.GET("/:id/members", s.Guard(userReaders), s.ListMembers)
	org.GET("/:id/employees", s.Guard(userReaders), s.ListEmployees)
	org.GET("/:id/assignments",
		s.Guard(GuardOptions{OrgParam: "id", Permissions: requirePermissions("ASSIGNMENT:READ:*", "ASSIGNMENT:*:*", "USER:*:*")}),
		s.ListAssignments,
	)

	// -------- Criteria --------
	org.POST("/:id/criteria", s.Guard(criteriaGuard("CREATE")), s.CreateCriteria)
	org.GET("/:id/criteria", s.Guard(criteriaGuard("READ")), s.ListCriteria)
	org.PATCH("/:id/criteria/:criteriaId", s.Guard(criteriaGuard("UPDATE")), s.UpdateCriteria)
	org.DELETE("/:id/criteria/:criteriaId", s.Guard(criteriaGuard("DELETE")), s.DeleteCriteria)

	// -------- Ratings --------
	ratingReaders := GuardOptions{OrgParam: "id", Permissions: requirePermissions("RATING:*:*", "RATING:READ:*", "RATING:READ:ASSIGNED")}
	org.POST("/:id/rating",
		s.Guard(GuardOptions{OrgParam: "id", Permissions: requirePermissions("RATING:*:*", "RATING:CREATE:*", "RATING:CREATE:ASSIGNED")}),
		s.CreateRating,
	)
	org.GET("/:id/rating", s.Guard(ratingReaders), s.ListRatings)
	org.PATCH("/:id/rating/:ratingId",
		s.Guard(GuardOptions{OrgParam: "id", Permissions: requirePermissions("RATING:*:*", "RATING:UPDATE:*", "RATING:UPDATE:ASSIGNED")}),
		s.UpdateRating,
	)
	org.DELETE("/:id/rating/:ratingId",
		s.Guard(GuardOptions{OrgParam: "id", Permissions: requirePermissions("RATING:*:*", "RATING:DELETE:*", "RATING:DELETE:ASSIGNED")}),
		s.DeleteRating,
	)
	org.GET("/:id/rating/:ratingId/report", s.Guard(ratingReaders), s.RatingReport)
}

func (s *Server) registerUserRoutes() {
	user := s.engine.Group("/user")
	user.GET("/ratings", s.Guard(GuardOptions{}), s.ListMyRatings)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func criteriaGuard(action string) GuardOptions {
	return GuardOptions{
		OrgParam:    "id",
		Permissions: requirePermissions("ORGANIZATION:CRITERIA:"+action, "ORGANIZATION:*:*"),
	}
}
