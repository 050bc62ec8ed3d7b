package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/order-service/services"
)

type OrderController struct {
	orders services.OrderService
}

func NewOrderController(orders services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// Checkout creates an order in Waiting and kicks off its payment.
func (oc *OrderController) Checkout(c *gin.Context) {
	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := oc.orders.Checkout(c.Request.Context(), &req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (oc *OrderController) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	order, err := oc.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) GetOrderByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing order code"})
		return
	}
	order, err := oc.orders.GetOrderByCode(c.Request.Context(), code)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) ListUserOrders(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	orders, total, err := oc.orders.GetUserOrders(c.Request.Context(), userID, page, limit)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total, "page": page, "limit": limit})
}

type transitionRequest struct {
	Actor string `json:"actor" binding:"required"`
}

func (oc *OrderController) transition(c *gin.Context, fn func(ctx *gin.Context, id uuid.UUID, actor string) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := fn(c, id, req.Actor); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (oc *OrderController) Confirm(c *gin.Context) {
	oc.transition(c, func(ctx *gin.Context, id uuid.UUID, actor string) error {
		return oc.orders.ConfirmOrder(ctx.Request.Context(), id, actor)
	})
}

func (oc *OrderController) Pack(c *gin.Context) {
	oc.transition(c, func(ctx *gin.Context, id uuid.UUID, actor string) error {
		return oc.orders.PackOrder(ctx.Request.Context(), id, actor)
	})
}

func (oc *OrderController) Ship(c *gin.Context) {
	oc.transition(c, func(ctx *gin.Context, id uuid.UUID, actor string) error {
		return oc.orders.ShipOrder(ctx.Request.Context(), id, actor)
	})
}

func (oc *OrderController) Complete(c *gin.Context) {
	oc.transition(c, func(ctx *gin.Context, id uuid.UUID, actor string) error {
		return oc.orders.CompleteOrder(ctx.Request.Context(), id, actor)
	})
}

func (oc *OrderController) Cancel(c *gin.Context) {
	oc.transition(c, func(ctx *gin.Context, id uuid.UUID, actor string) error {
		return oc.orders.CancelOrder(ctx.Request.Context(), id, actor)
	})
}

type rateRequest struct {
	Actor    string `json:"actor" binding:"required"`
	ShopRate int    `json:"shop_rate"`
	UserRate int    `json:"user_rate"`
}

func (oc *OrderController) Rate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := oc.orders.RateOrder(c.Request.Context(), id, req.Actor, req.ShopRate, req.UserRate); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
