package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/app"
	iauth "github.com/peladahub/peladahub/internal/auth"
	"github.com/peladahub/peladahub/internal/cache"
	"github.com/peladahub/peladahub/internal/handlers"
	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/realtime"
	"github.com/peladahub/peladahub/internal/services"
	"github.com/peladahub/peladahub/pkg/mail"
)

// Dependencies carries everything the router needs to wire handlers.
type Dependencies struct {
	DB       *gorm.DB
	Config   *app.Config
	JWT      *iauth.JWTService
	Sessions *iauth.SessionService
	Mailer   mail.Mailer
	Cache    cache.Store
	Hub      *realtime.Hub
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Hub == nil {
		deps.Hub = realtime.NewHub()
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	limit := deps.Config.Server.RateLimit
	if deps.Cache != nil {
		r.Use(middleware.RateLimitWithStore(middleware.NewStoreRateStore(deps.Cache), limit.MaxRequests, limit.Window))
	} else {
		r.Use(middleware.RateLimit(limit.MaxRequests, limit.Window))
	}

	r.NoRoute(middleware.NotFoundHandler)

	// Public endpoints
	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	svc, err := buildServices(deps)
	if err != nil {
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(svc.users, deps.Sessions)

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/logout", authHandler.Logout)

	registerInviteRoutes(api, svc)
	registerMatchRoutes(api, svc, deps.Hub)
	registerDiaristRoutes(api, svc)
	registerFinanceRoutes(api, svc)
	registerProfileRoutes(api, svc)

	return r, nil
}

type routerServices struct {
	users    *services.UserService
	invites  *services.InviteService
	matches  *services.MatchService
	diarists *services.DiaristService
	draws    *services.DrawService
	finance  *services.FinanceService
	rankings *services.RankingService
}

func buildServices(deps Dependencies) (*routerServices, error) {
	users, err := services.NewUserService(deps.DB)
	if err != nil {
		return nil, err
	}

	inviteOpts := []services.InviteOption{
		services.WithInviteBaseURL(deps.Config.Server.BaseURL),
	}
	if deps.Config.Invites.Expiry > 0 {
		inviteOpts = append(inviteOpts, services.WithInviteExpiry(deps.Config.Invites.Expiry))
	}
	invites, err := services.NewInviteService(deps.DB, deps.Mailer, inviteOpts...)
	if err != nil {
		return nil, err
	}

	matches, err := services.NewMatchService(deps.DB, services.WithMatchBroadcaster(deps.Hub))
	if err != nil {
		return nil, err
	}

	diarists, err := services.NewDiaristService(deps.DB)
	if err != nil {
		return nil, err
	}

	draws, err := services.NewDrawService(deps.DB)
	if err != nil {
		return nil, err
	}

	finance, err := services.NewFinanceService(deps.DB)
	if err != nil {
		return nil, err
	}

	var rankingOpts []services.RankingOption
	if deps.Cache != nil {
		rankingOpts = append(rankingOpts, services.WithRankingCache(deps.Cache, 0))
	}
	rankings, err := services.NewRankingService(deps.DB, rankingOpts...)
	if err != nil {
		return nil, err
	}

	return &routerServices{
		users:    users,
		invites:  invites,
		matches:  matches,
		diarists: diarists,
		draws:    draws,
		finance:  finance,
		rankings: rankings,
	}, nil
}
