package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/notification-service/models"
	"github.com/shoplet/marketplace-backend/services/notification-service/repository"
)

// NotificationService turns saga events into user-facing notification
// documents.
type NotificationService interface {
	RecordOrderStatus(ctx context.Context, evt events.OrderStatusChanged) error
	RecordPaymentStatus(ctx context.Context, evt events.PaymentStatusChanged) error
	RecordOrderActivity(ctx context.Context, evt events.OrderCreatedOrUpdatedEvent) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type notificationServiceImpl struct {
	repo   repository.NotificationRepository
	logger *zap.Logger
}

func NewNotificationService(repo repository.NotificationRepository, logger *zap.Logger) NotificationService {
	return &notificationServiceImpl{repo: repo, logger: logger}
}

func (s *notificationServiceImpl) RecordOrderStatus(ctx context.Context, evt events.OrderStatusChanged) error {
	if evt.AccountID == "" || evt.OrderCode == "" {
		return apperrors.Validation("order status event missing account or order code")
	}
	n := &models.Notification{
		ID:        fmt.Sprintf("%s:%s:%s", models.KindOrderStatus, evt.OrderCode, evt.NewStatus),
		UserID:    evt.AccountID,
		OrderCode: evt.OrderCode,
		Kind:      models.KindOrderStatus,
		Title:     fmt.Sprintf("Order %s", evt.NewStatus),
		Message:   fmt.Sprintf("Your order %s is now %s.", evt.OrderCode, evt.NewStatus),
		CreatedAt: time.Now().UTC(),
	}
	return s.save(ctx, n)
}

func (s *notificationServiceImpl) RecordPaymentStatus(ctx context.Context, evt events.PaymentStatusChanged) error {
	if evt.UserID == "" || evt.OrderID == "" {
		return apperrors.Validation("payment status event missing user or order id")
	}
	n := &models.Notification{
		ID:        fmt.Sprintf("%s:%s:%s", models.KindPaymentStatus, evt.OrderID, evt.NewStatus),
		UserID:    evt.UserID,
		Kind:      models.KindPaymentStatus,
		Title:     fmt.Sprintf("Payment %s", evt.NewStatus),
		Message:   fmt.Sprintf("Payment of %d for your order is %s.", evt.Amount, evt.NewStatus),
		CreatedAt: time.Now().UTC(),
	}
	return s.save(ctx, n)
}

// RecordOrderActivity handles the SNS-mirrored order feed arriving over
// SQS.
func (s *notificationServiceImpl) RecordOrderActivity(ctx context.Context, evt events.OrderCreatedOrUpdatedEvent) error {
	if evt.UserID == "" || evt.OrderCode == "" {
		return apperrors.Validation("order activity event missing user or order code")
	}
	message := evt.Message
	if message == "" {
		message = fmt.Sprintf("Order %s update: %s.", evt.OrderCode, evt.OrderStatus)
	}
	n := &models.Notification{
		ID:        fmt.Sprintf("%s:%s:%s", models.KindOrderActivity, evt.OrderCode, evt.OrderStatus),
		UserID:    evt.UserID,
		OrderCode: evt.OrderCode,
		Kind:      models.KindOrderActivity,
		Title:     "Order update",
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	return s.save(ctx, n)
}

func (s *notificationServiceImpl) save(ctx context.Context, n *models.Notification) error {
	if err := s.repo.Save(ctx, n); err != nil {
		return apperrors.Transient("notification save failed", err)
	}
	s.logger.Info("notification recorded",
		zap.String("id", n.ID),
		zap.String("user_id", n.UserID),
	)
	return nil
}

func (s *notificationServiceImpl) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, id, userID string) error {
	return s.repo.MarkRead(ctx, id, userID)
}
