package services

import (
	"context"
	"encoding/json"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
)

// OrderEventConsumer feeds order lifecycle events into the inventory
// ledger.
type OrderEventConsumer struct {
	ledger  *InventoryLedger
	groupID string
}

func NewOrderEventConsumer(ledger *InventoryLedger, groupID string) *OrderEventConsumer {
	return &OrderEventConsumer{ledger: ledger, groupID: groupID}
}

func (c *OrderEventConsumer) Topic() string   { return events.TopicOrderCreatedOrUpdated }
func (c *OrderEventConsumer) GroupID() string { return c.groupID }

func (c *OrderEventConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var evt events.OrderCreatedOrUpdatedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return apperrors.Validation("malformed order event: %v", err)
	}
	return c.ledger.ApplyOrderEvent(ctx, evt)
}

// RefundCompletedConsumer restores stock for the items of a completed
// refund.
type RefundCompletedConsumer struct {
	ledger  *InventoryLedger
	groupID string
}

func NewRefundCompletedConsumer(ledger *InventoryLedger, groupID string) *RefundCompletedConsumer {
	return &RefundCompletedConsumer{ledger: ledger, groupID: groupID}
}

func (c *RefundCompletedConsumer) Topic() string   { return events.TopicRefundCompleted }
func (c *RefundCompletedConsumer) GroupID() string { return c.groupID }

func (c *RefundCompletedConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	var evt events.RefundCompletedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return apperrors.Validation("malformed refund event: %v", err)
	}
	return c.ledger.ApplyRefund(ctx, evt)
}
