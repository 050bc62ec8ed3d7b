package services

import (
	"context"
	"encoding/json"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
)

// OrderStatusConsumer records a notification for every order transition.
type OrderStatusConsumer struct {
	notifications NotificationService
	groupID       string
}

func NewOrderStatusConsumer(notifications NotificationService, groupID string) *OrderStatusConsumer {
	return &OrderStatusConsumer{notifications: notifications, groupID: groupID}
}

func (c *OrderStatusConsumer) Topic() string   { return events.TopicOrderStatusChanged }
func (c *OrderStatusConsumer) GroupID() string { return c.groupID }

func (c *OrderStatusConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var evt events.OrderStatusChanged
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return apperrors.Validation("malformed order status event: %v", err)
	}
	return c.notifications.RecordOrderStatus(ctx, evt)
}

// PaymentStatusConsumer records a notification for payment outcomes.
type PaymentStatusConsumer struct {
	notifications NotificationService
	groupID       string
}

func NewPaymentStatusConsumer(notifications NotificationService, groupID string) *PaymentStatusConsumer {
	return &PaymentStatusConsumer{notifications: notifications, groupID: groupID}
}

func (c *PaymentStatusConsumer) Topic() string   { return events.TopicPaymentStatusChanged }
func (c *PaymentStatusConsumer) GroupID() string { return c.groupID }

func (c *PaymentStatusConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var evt events.PaymentStatusChanged
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return apperrors.Validation("malformed payment status event: %v", err)
	}
	return c.notifications.RecordPaymentStatus(ctx, evt)
}
