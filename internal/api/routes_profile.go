package api

import (
	"github.com/gin-gonic/gin"

	"github.com/peladahub/peladahub/internal/handlers"
	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/models"
)

func registerProfileRoutes(api *gin.RouterGroup, svc *routerServices) {
	handler := handlers.NewProfileHandler(svc.users)
	organizerOnly := middleware.RequireRole(models.RoleOrganizer)
	anyPlayer := middleware.RequireMembership(models.MembershipMonthly, models.MembershipCasual)

	api.PATCH("/profile", handler.Update)
	api.GET("/players", anyPlayer, handler.Players)
	api.POST("/players/:id/deactivate", organizerOnly, handler.Deactivate)
}
