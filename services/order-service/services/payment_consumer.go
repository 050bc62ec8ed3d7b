package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/order-service/models"
	"github.com/shoplet/marketplace-backend/services/order-service/repository"
)

// PaymentConsumer advances the order machine in response to payment
// lifecycle events. It is the only consumer that does so.
type PaymentConsumer struct {
	orders    repository.OrderRepository
	refunds   repository.RefundRepository
	publisher messaging.Publisher
	groupID   string
	logger    *zap.Logger
}

func NewPaymentConsumer(
	orders repository.OrderRepository,
	refunds repository.RefundRepository,
	publisher messaging.Publisher,
	groupID string,
	logger *zap.Logger,
) *PaymentConsumer {
	return &PaymentConsumer{
		orders:    orders,
		refunds:   refunds,
		publisher: publisher,
		groupID:   groupID,
		logger:    logger,
	}
}

func (c *PaymentConsumer) Topic() string   { return events.TopicPaymentStatusChanged }
func (c *PaymentConsumer) GroupID() string { return c.groupID }

func (c *PaymentConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var evt events.PaymentStatusChanged
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return apperrors.Validation("invalid payment event payload: %v", err)
	}
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return apperrors.Validation("invalid order id %q", evt.OrderID)
	}

	// NotFound propagates as retryable: the event may precede the local
	// commit of the order it refers to.
	order, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	switch evt.NewStatus {
	case "Paid":
		return c.onPaid(ctx, order)
	case "Failed":
		return c.onFailed(ctx, order)
	case "Refunded":
		return c.onRefunded(ctx, order)
	default:
		c.logger.Warn("unknown payment status", zap.String("status", evt.NewStatus))
		return nil
	}
}

func (c *PaymentConsumer) onPaid(ctx context.Context, order *models.Order) error {
	if order.Status != models.OrderStatusWaiting {
		// Redelivered capture event; the order already advanced.
		c.logger.Info("payment event replayed, order already advanced",
			zap.String("order_id", order.ID.String()),
			zap.String("status", string(order.Status)),
		)
		return nil
	}
	statusEvt, err := order.MarkPending("payment-service")
	if err != nil {
		return err
	}
	order.PaymentStatus = models.OrderPaymentPaid
	if err := c.orders.UpdateWithVersion(ctx, order); err != nil {
		return err
	}
	return c.publishAfterTransition(ctx, order, statusEvt)
}

func (c *PaymentConsumer) onFailed(ctx context.Context, order *models.Order) error {
	if order.Status == models.OrderStatusCancelled {
		return nil
	}
	statusEvt, err := order.Cancel("payment-service")
	if err != nil {
		return err
	}
	order.PaymentStatus = models.OrderPaymentFailed
	if err := c.orders.UpdateWithVersion(ctx, order); err != nil {
		return err
	}
	return c.publishAfterTransition(ctx, order, statusEvt)
}

// onRefunded closes the refund loop: the payment service confirmed the
// provider refund, so completed refund requests move to Refunded and a
// fully returned order reaches its terminal state.
func (c *PaymentConsumer) onRefunded(ctx context.Context, order *models.Order) error {
	requests, err := c.refunds.FindByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}
	for i := range requests {
		req := &requests[i]
		if req.Status != models.RefundStatusCompleted {
			continue
		}
		if err := req.Advance(models.RefundStatusRefunded, "payment-service"); err != nil {
			return err
		}
		if err := c.refunds.UpdateWithVersion(ctx, req); err != nil {
			return err
		}
	}

	if order.PaymentStatus == models.OrderPaymentRefunded && order.Status != models.OrderStatusReturning {
		return nil
	}
	order.PaymentStatus = models.OrderPaymentRefunded
	if order.Status == models.OrderStatusReturning {
		statusEvt, err := order.MarkRefunded("payment-service")
		if err != nil {
			return err
		}
		if err := c.orders.UpdateWithVersion(ctx, order); err != nil {
			return err
		}
		return c.publishAfterTransition(ctx, order, statusEvt)
	}
	return c.orders.UpdateWithVersion(ctx, order)
}

func (c *PaymentConsumer) publishAfterTransition(ctx context.Context, order *models.Order, statusEvt *events.OrderStatusChanged) error {
	if err := c.publisher.PublishJSON(ctx, events.TopicOrderStatusChanged, order.ID.String(), statusEvt); err != nil {
		return apperrors.Transient("status event publish failed", err)
	}
	orderEvt := events.OrderCreatedOrUpdatedEvent{
		OrderCode:   order.OrderCode,
		UserID:      order.UserID.String(),
		Message:     statusEvt.NewStatus,
		OrderStatus: string(order.Status),
		OrderItems:  order.ToEventItems(),
	}
	if err := c.publisher.PublishJSON(ctx, events.TopicOrderCreatedOrUpdated, order.OrderCode, orderEvt); err != nil {
		return apperrors.Transient("order event publish failed", err)
	}
	return nil
}
