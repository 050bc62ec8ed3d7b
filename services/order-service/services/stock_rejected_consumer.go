package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/order-service/models"
	"github.com/shoplet/marketplace-backend/services/order-service/repository"
)

// StockRejectedConsumer cancels orders whose stock adjustment was rejected
// by the inventory ledger. Insufficient stock is a business rejection of
// the order, never silently swallowed.
type StockRejectedConsumer struct {
	orders    repository.OrderRepository
	publisher messaging.Publisher
	groupID   string
	logger    *zap.Logger
}

func NewStockRejectedConsumer(
	orders repository.OrderRepository,
	publisher messaging.Publisher,
	groupID string,
	logger *zap.Logger,
) *StockRejectedConsumer {
	return &StockRejectedConsumer{
		orders:    orders,
		publisher: publisher,
		groupID:   groupID,
		logger:    logger,
	}
}

func (c *StockRejectedConsumer) Topic() string   { return events.TopicStockRejected }
func (c *StockRejectedConsumer) GroupID() string { return c.groupID }

func (c *StockRejectedConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var evt events.StockRejectedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return apperrors.Validation("invalid stock rejection payload: %v", err)
	}

	order, err := c.orders.FindByCode(ctx, evt.OrderCode)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusCancelled {
		// Redelivery after the cancellation already applied.
		return nil
	}

	statusEvt, err := order.Cancel("inventory-service")
	if err != nil {
		return err
	}
	if err := c.orders.UpdateWithVersion(ctx, order); err != nil {
		return err
	}

	c.logger.Warn("order cancelled for insufficient stock",
		zap.String("order_code", evt.OrderCode),
		zap.String("product_id", evt.ProductID),
		zap.Int("requested", evt.Requested),
		zap.Int("available", evt.Available),
	)

	if err := c.publisher.PublishJSON(ctx, events.TopicOrderStatusChanged, order.ID.String(), statusEvt); err != nil {
		return apperrors.Transient("status event publish failed", err)
	}
	return nil
}
