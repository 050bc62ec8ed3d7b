package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
)

// RefundConsumer releases captured payments for completed refund requests.
type RefundConsumer struct {
	payments PaymentService
	groupID  string
	logger   *zap.Logger
}

func NewRefundConsumer(payments PaymentService, groupID string, logger *zap.Logger) *RefundConsumer {
	return &RefundConsumer{payments: payments, groupID: groupID, logger: logger}
}

func (c *RefundConsumer) Topic() string   { return events.TopicRefundCompleted }
func (c *RefundConsumer) GroupID() string { return c.groupID }

func (c *RefundConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var evt events.RefundCompletedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return apperrors.Validation("invalid refund event payload: %v", err)
	}
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return apperrors.Validation("invalid order id %q", evt.OrderID)
	}

	c.logger.Info("refund completed, releasing payment",
		zap.String("order_id", evt.OrderID),
		zap.String("refund_id", evt.RefundRequestID),
	)
	return c.payments.RefundForOrder(ctx, orderID)
}
