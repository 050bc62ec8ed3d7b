package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/shoplet/marketplace-backend/services/product-service/controllers"
)

// RegisterProductRoutes wires the catalog and stock endpoints.
func RegisterProductRoutes(r *gin.Engine, products *controllers.ProductController) {
	api := r.Group("/products")
	{
		api.POST("", products.Create)
		api.GET("/:id", products.GetProduct)
		api.GET("/:id/stock", products.GetProductStock)
	}
}
