package api

import (
	"github.com/gin-gonic/gin"

	"github.com/peladahub/peladahub/internal/handlers"
	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/models"
)

func registerDiaristRoutes(api *gin.RouterGroup, svc *routerServices) {
	handler := handlers.NewDiaristHandler(svc.diarists)
	organizerOnly := middleware.RequireRole(models.RoleOrganizer)
	casualOnly := middleware.RequireMembership(models.MembershipCasual)

	api.POST("/matches/:id/diarist", casualOnly, handler.Request)
	api.GET("/matches/:id/diarist", organizerOnly, handler.ListByMatch)

	diarist := api.Group("/diarist")
	{
		diarist.GET("/:id", casualOnly, handler.Status)
		diarist.POST("/:id/start-payment", casualOnly, handler.StartPayment)
		diarist.POST("/:id/pay", casualOnly, handler.Pay)
		diarist.POST("/:id/credit", casualOnly, handler.Credit)
	}
}
