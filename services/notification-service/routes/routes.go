package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/shoplet/marketplace-backend/services/notification-service/controllers"
)

func RegisterNotificationRoutes(r *gin.Engine, notifications *controllers.NotificationController) {
	api := r.Group("/notifications")
	{
		api.GET("/user/:userId", notifications.List)
		api.POST("/:id/read", notifications.MarkRead)
	}
}
