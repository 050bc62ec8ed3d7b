package services

import (
	"context"
	"encoding/json"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
)

// ShopPaymentConsumer applies settlement requests published by the order
// service on order completion and refund completion.
type ShopPaymentConsumer struct {
	settlements SettlementService
	groupID     string
}

func NewShopPaymentConsumer(settlements SettlementService, groupID string) *ShopPaymentConsumer {
	return &ShopPaymentConsumer{settlements: settlements, groupID: groupID}
}

func (c *ShopPaymentConsumer) Topic() string   { return events.TopicShopPaymentRequest }
func (c *ShopPaymentConsumer) GroupID() string { return c.groupID }

func (c *ShopPaymentConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var evt events.ShopPaymentRequest
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return apperrors.Validation("malformed shop payment request: %v", err)
	}
	return c.settlements.HandleShopPayment(ctx, evt)
}
