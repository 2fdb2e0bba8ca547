package api

import (
	"github.com/gin-gonic/gin"

	"github.com/peladahub/peladahub/internal/handlers"
	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/models"
)

func registerFinanceRoutes(api *gin.RouterGroup, svc *routerServices) {
	financeHandler := handlers.NewFinanceHandler(svc.finance)
	rankingHandler := handlers.NewRankingHandler(svc.rankings)
	organizerOnly := middleware.RequireRole(models.RoleOrganizer)
	monthlyOnly := middleware.RequireMembership(models.MembershipMonthly)

	finance := api.Group("/finance")
	finance.Use(monthlyOnly)
	{
		finance.POST("/charges", organizerOnly, financeHandler.OpenCharges)
		finance.GET("/charges", financeHandler.MyCharges)
		finance.POST("/charges/:id/pay", financeHandler.PayCharge)
		finance.GET("/balance", financeHandler.Balance)
	}

	api.GET("/rankings", monthlyOnly, rankingHandler.Monthly)
}
