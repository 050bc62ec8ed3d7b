package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/product-service/models"
	"github.com/shoplet/marketplace-backend/services/product-service/repository"
)

type ProductController struct {
	repo repository.ProductRepository
}

func NewProductController(repo repository.ProductRepository) *ProductController {
	return &ProductController{repo: repo}
}

type createProductRequest struct {
	ShopID   string `json:"shop_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Price    int    `json:"price" binding:"required,gt=0"`
	Stock    int    `json:"stock" binding:"gte=0"`
	Variants []struct {
		Name  string `json:"name" binding:"required"`
		Stock int    `json:"stock" binding:"gte=0"`
	} `json:"variants"`
}

func (pc *ProductController) Create(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	shopID, err := uuid.Parse(req.ShopID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shop id"})
		return
	}
	product := models.Product{
		ID:     uuid.New(),
		ShopID: shopID,
		Name:   req.Name,
		Price:  req.Price,
		Stock:  req.Stock,
	}
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{
			ID:    uuid.New(),
			Name:  v.Name,
			Stock: v.Stock,
		})
	}
	if err := pc.repo.Create(c.Request.Context(), &product); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (pc *ProductController) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	product, err := pc.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, product)
}

// GetProductStock is the synchronous stock read used by checkout for a
// fast-fail hint. The conditional decrement remains the authority; a
// passing read here can still lose the race.
func (pc *ProductController) GetProductStock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	var variantID *uuid.UUID
	if raw := c.Query("variant_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid variant id"})
			return
		}
		variantID = &parsed
	}
	stock, err := pc.repo.GetStock(c.Request.Context(), id, variantID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "stock": stock})
}
