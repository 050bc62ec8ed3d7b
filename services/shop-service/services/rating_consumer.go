package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/shop-service/models"
	"github.com/shoplet/marketplace-backend/services/shop-service/repository"
)

// RatingConsumer folds the rating side channel of order events into the
// shop aggregate. The order event carries only the order code, so the
// owning shop is resolved through the order service's synchronous API.
type RatingConsumer struct {
	shops   repository.ShopRepository
	orders  OrderClient
	groupID string
	logger  *zap.Logger
}

func NewRatingConsumer(shops repository.ShopRepository, orders OrderClient, groupID string, logger *zap.Logger) *RatingConsumer {
	return &RatingConsumer{shops: shops, orders: orders, groupID: groupID, logger: logger}
}

func (c *RatingConsumer) Topic() string   { return events.TopicOrderCreatedOrUpdated }
func (c *RatingConsumer) GroupID() string { return c.groupID }

func (c *RatingConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var evt events.OrderCreatedOrUpdatedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return apperrors.Validation("malformed order event: %v", err)
	}
	if evt.ShopRate == 0 {
		return nil
	}
	if evt.ShopRate < 1 || evt.ShopRate > 5 {
		return apperrors.Validation("shop rate %d out of range", evt.ShopRate)
	}

	order, err := c.orders.GetByCode(ctx, evt.OrderCode)
	if err != nil {
		return err
	}
	rating := &models.ShopRating{
		ID:        uuid.New(),
		ShopID:    order.ShopID,
		OrderCode: evt.OrderCode,
		Rate:      evt.ShopRate,
	}
	if err := c.shops.ApplyRating(ctx, rating); err != nil {
		return err
	}
	c.logger.Info("shop rating applied",
		zap.String("shop_id", order.ShopID.String()),
		zap.String("order_code", evt.OrderCode),
		zap.Int("rate", evt.ShopRate),
	)
	return nil
}
