package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/shop-service/models"
	"github.com/shoplet/marketplace-backend/services/shop-service/repository"
	"github.com/shoplet/marketplace-backend/services/shop-service/services"
)

type ShopController struct {
	shops       repository.ShopRepository
	settlements services.SettlementService
}

func NewShopController(shops repository.ShopRepository, settlements services.SettlementService) *ShopController {
	return &ShopController{shops: shops, settlements: settlements}
}

type createShopRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`
	Name    string `json:"name" binding:"required"`
}

func (sc *ShopController) Create(c *gin.Context) {
	var req createShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner id"})
		return
	}
	shop := models.Shop{ID: uuid.New(), OwnerID: ownerID, Name: req.Name}
	if err := sc.shops.Create(c.Request.Context(), &shop); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, shop)
}

func (sc *ShopController) GetShop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shop id"})
		return
	}
	shop, err := sc.shops.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           shop.ID,
		"owner_id":     shop.OwnerID,
		"name":         shop.Name,
		"rating":       shop.AverageRating(),
		"rating_count": shop.RatingCount,
		"created_at":   shop.CreatedAt,
	})
}

// GetWallet returns the shop's wallet balance.
func (sc *ShopController) GetWallet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shop id"})
		return
	}
	wallet, err := sc.settlements.GetWallet(c.Request.Context(), id, models.WalletOwnerShop)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wallet)
}
