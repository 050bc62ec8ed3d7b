package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/shoplet/marketplace-backend/services/order-service/controllers"
)

// RegisterOrderRoutes wires the order and refund endpoints.
func RegisterOrderRoutes(
	r *gin.Engine,
	orders *controllers.OrderController,
	refunds *controllers.RefundController,
	delivery *controllers.DeliveryWebhookController,
) {
	api := r.Group("/orders")
	{
		api.POST("/checkout", orders.Checkout)
		api.GET("/:id", orders.GetOrder)
		api.GET("/code/:code", orders.GetOrderByCode)
		api.GET("/user/:userId", orders.ListUserOrders)
		api.POST("/:id/confirm", orders.Confirm)
		api.POST("/:id/pack", orders.Pack)
		api.POST("/:id/ship", orders.Ship)
		api.POST("/:id/complete", orders.Complete)
		api.POST("/:id/cancel", orders.Cancel)
		api.POST("/:id/rate", orders.Rate)
	}

	refundAPI := r.Group("/refunds")
	{
		refundAPI.POST("", refunds.Create)
		refundAPI.GET("/:id", refunds.Get)
		refundAPI.PATCH("/:id/status", refunds.UpdateStatus)
	}

	r.POST("/webhooks/delivery", delivery.HandleCallback)
}
