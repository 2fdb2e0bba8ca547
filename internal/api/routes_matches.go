package api

import (
	"github.com/gin-gonic/gin"

	"github.com/peladahub/peladahub/internal/handlers"
	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/internal/realtime"
)

func registerMatchRoutes(api *gin.RouterGroup, svc *routerServices, hub *realtime.Hub) {
	handler := handlers.NewMatchHandler(svc.matches, svc.draws, hub)
	organizerOnly := middleware.RequireRole(models.RoleOrganizer)
	anyPlayer := middleware.RequireMembership(models.MembershipMonthly, models.MembershipCasual)
	monthlyOnly := middleware.RequireMembership(models.MembershipMonthly)

	matches := api.Group("/matches")
	{
		matches.GET("", anyPlayer, handler.List)
		matches.GET("/:id", anyPlayer, handler.Get)
		matches.GET("/:id/teams", anyPlayer, handler.Teams)
		matches.GET("/:id/live", anyPlayer, handler.Live)

		// Direct roster entry is a monthly-member right; casual players go
		// through the paid diarist flow instead.
		matches.POST("/:id/join", monthlyOnly, handler.Join)
		matches.POST("/:id/leave", monthlyOnly, handler.Leave)

		matches.POST("", organizerOnly, handler.Create)
		matches.POST("/:id/start", organizerOnly, handler.Start)
		matches.POST("/:id/finish", organizerOnly, handler.Finish)
		matches.POST("/:id/goals", organizerOnly, handler.RecordGoal)
		matches.POST("/:id/draw", organizerOnly, handler.Draw)
	}
}
