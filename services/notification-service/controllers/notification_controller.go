package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/notification-service/models"
	"github.com/shoplet/marketplace-backend/services/notification-service/services"
)

type NotificationController struct {
	notifications services.NotificationService
}

func NewNotificationController(notifications services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

func (nc *NotificationController) List(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user id"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	filter := models.NotificationFilter{
		UserID:   userID,
		Kind:     c.Query("kind"),
		Unread:   c.Query("unread") == "true",
		Page:     page,
		PageSize: pageSize,
	}
	notifications, total, err := nc.notifications.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "total": total})
}

type markReadRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	id := c.Param("id")
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := nc.notifications.MarkRead(c.Request.Context(), id, req.UserID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
