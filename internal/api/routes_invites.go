package api

import (
	"github.com/gin-gonic/gin"

	"github.com/peladahub/peladahub/internal/handlers"
	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/models"
)

func registerInviteRoutes(api *gin.RouterGroup, svc *routerServices) {
	handler := handlers.NewInviteHandler(svc.invites, svc.users)
	organizerOnly := middleware.RequireRole(models.RoleOrganizer)

	invites := api.Group("/invites")
	{
		invites.POST("", organizerOnly, handler.Create)
		invites.GET("", organizerOnly, handler.List)
		invites.GET("/:id/qr", organizerOnly, handler.QRCode)

		// Any authenticated account may redeem a token; the invite decides
		// the membership it grants.
		invites.POST("/accept", handler.Accept)
	}
}
