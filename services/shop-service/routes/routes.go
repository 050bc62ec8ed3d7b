package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/shoplet/marketplace-backend/services/shop-service/controllers"
)

// RegisterShopRoutes wires the shop and wallet endpoints.
func RegisterShopRoutes(r *gin.Engine, shops *controllers.ShopController) {
	api := r.Group("/shops")
	{
		api.POST("", shops.Create)
		api.GET("/:id", shops.GetShop)
		api.GET("/:id/wallet", shops.GetWallet)
	}
}
