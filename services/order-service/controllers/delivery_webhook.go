package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/order-service/services"
)

// DeliveryWebhookController receives delivery-provider callbacks. The
// provider delivers at least once, so a repeated callback for an already
// delivered order is acknowledged, not failed.
type DeliveryWebhookController struct {
	orders services.OrderService
	secret string
	logger *zap.Logger
}

func NewDeliveryWebhookController(orders services.OrderService, secret string, logger *zap.Logger) *DeliveryWebhookController {
	return &DeliveryWebhookController{orders: orders, secret: secret, logger: logger}
}

type deliveryCallback struct {
	OrderID  string `json:"order_id" binding:"required"`
	Status   string `json:"status" binding:"required"`
	Provider string `json:"provider"`
}

func (dc *DeliveryWebhookController) HandleCallback(c *gin.Context) {
	if dc.secret != "" && c.GetHeader("X-Delivery-Secret") != dc.secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var cb deliveryCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if cb.Status != "delivered" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	orderID, err := uuid.Parse(cb.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	actor := cb.Provider
	if actor == "" {
		actor = "delivery-provider"
	}
	if err := dc.orders.MarkDelivered(c.Request.Context(), orderID, actor); err != nil {
		if apperrors.KindOf(err) == apperrors.KindStateConflict {
			dc.logger.Info("duplicate delivery callback",
				zap.String("order_id", cb.OrderID))
			c.JSON(http.StatusOK, gin.H{"status": "already delivered"})
			return
		}
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
