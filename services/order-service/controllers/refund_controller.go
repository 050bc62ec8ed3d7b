package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/order-service/models"
	"github.com/shoplet/marketplace-backend/services/order-service/services"
)

type RefundController struct {
	refunds services.RefundService
}

func NewRefundController(refunds services.RefundService) *RefundController {
	return &RefundController{refunds: refunds}
}

func (rc *RefundController) Create(c *gin.Context) {
	var req services.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	refund, err := rc.refunds.Create(c.Request.Context(), &req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, refund)
}

func (rc *RefundController) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid refund id"})
		return
	}
	refund, err := rc.refunds.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, refund)
}

type refundStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor" binding:"required"`
}

// UpdateStatus advances the refund machine one state or rejects it.
func (rc *RefundController) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid refund id"})
		return
	}
	var req refundStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if models.RefundStatus(req.Status) == models.RefundStatusRejected {
		err = rc.refunds.Reject(c.Request.Context(), id, req.Actor)
	} else {
		err = rc.refunds.Advance(c.Request.Context(), id, models.RefundStatus(req.Status), req.Actor)
	}
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
