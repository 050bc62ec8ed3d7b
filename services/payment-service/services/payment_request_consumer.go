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

// PaymentRequestConsumer opens a Pending payment and a provider intent for
// each freshly checked-out order.
type PaymentRequestConsumer struct {
	payments PaymentService
	provider ProviderClient
	currency string
	groupID  string
	logger   *zap.Logger
}

func NewPaymentRequestConsumer(
	payments PaymentService,
	provider ProviderClient,
	currency string,
	groupID string,
	logger *zap.Logger,
) *PaymentRequestConsumer {
	return &PaymentRequestConsumer{
		payments: payments,
		provider: provider,
		currency: currency,
		groupID:  groupID,
		logger:   logger,
	}
}

func (c *PaymentRequestConsumer) Topic() string   { return events.TopicPaymentRequest }
func (c *PaymentRequestConsumer) GroupID() string { return c.groupID }

func (c *PaymentRequestConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var req events.PaymentRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return apperrors.Validation("invalid payment request payload: %v", err)
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return apperrors.Validation("invalid order id %q", req.OrderID)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return apperrors.Validation("invalid user id %q", req.UserID)
	}

	// Redelivery guard: skip only when the payment already carries its
	// provider ref. A payment without one means a prior delivery died
	// between creating the row and the intent, so the intent leg must run
	// again.
	payment, err := c.payments.GetByOrderID(ctx, orderID)
	switch {
	case err == nil && payment.ProviderCode != nil:
		c.logger.Info("payment request replayed",
			zap.String("order_id", orderID.String()),
			zap.String("payment_id", payment.ID.String()),
		)
		return nil
	case err != nil && apperrors.KindOf(err) != apperrors.KindNotFound:
		return err
	case err != nil:
		payment, err = c.payments.CreateForOrder(ctx, orderID, userID, req.Amount, req.Method)
		if err != nil {
			return err
		}
	}

	if c.provider != nil {
		ref, err := c.provider.CreateIntent(int64(payment.Amount), c.currency, orderID.String())
		if err != nil {
			// Provider unavailability is transient; the bus redelivers.
			return apperrors.Transient("provider intent creation failed", err)
		}
		if err := c.payments.AttachProviderRef(ctx, orderID, ref); err != nil {
			return err
		}
		c.logger.Info("provider intent created",
			zap.String("order_id", orderID.String()),
			zap.String("provider_code", ref),
		)
	}
	return nil
}
