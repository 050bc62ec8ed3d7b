package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/shoplet/marketplace-backend/services/payment-service/controllers"
)

func RegisterPaymentRoutes(r *gin.Engine, payments *controllers.PaymentController) {
	api := r.Group("/payments")
	{
		api.GET("/order/:orderId", payments.GetByOrder)
	}
	r.POST("/webhooks/stripe", payments.StripeWebhook)
}
