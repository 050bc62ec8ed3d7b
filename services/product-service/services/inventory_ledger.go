package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/product-service/models"
	"github.com/shoplet/marketplace-backend/services/product-service/repository"
)

// InventoryLedger applies stock deltas idempotently in response to order
// lifecycle events. A whole multi-item adjustment is all-or-nothing: if any
// item fails the decrement guard the transaction rolls back and the order
// is rejected, so no partial state is ever left behind.
type InventoryLedger struct {
	repo      repository.ProductRepository
	publisher messaging.Publisher
	logger    *zap.Logger
}

func NewInventoryLedger(repo repository.ProductRepository, publisher messaging.Publisher, logger *zap.Logger) *InventoryLedger {
	return &InventoryLedger{repo: repo, publisher: publisher, logger: logger}
}

// ApplyOrderEvent reacts to an order lifecycle event carrying the full
// item list.
func (l *InventoryLedger) ApplyOrderEvent(ctx context.Context, evt events.OrderCreatedOrUpdatedEvent) error {
	switch evt.OrderStatus {
	case "Waiting", "Pending":
		return l.decrementForOrder(ctx, evt)
	case "Cancelled":
		return l.restoreForOrder(ctx, evt)
	default:
		return nil
	}
}

func (l *InventoryLedger) decrementForOrder(ctx context.Context, evt events.OrderCreatedOrUpdatedEvent) error {
	// An order decrements exactly once even though both Waiting and
	// Pending are decrement triggers: a prior decrement under either kind
	// short-circuits.
	applied, err := l.decrementApplied(ctx, evt.OrderCode)
	if err != nil {
		return apperrors.Transient("adjustment lookup failed", err)
	}
	if applied {
		l.logger.Info("stock decrement replayed, skipping",
			zap.String("order_code", evt.OrderCode))
		return nil
	}

	deltas, err := toDeltas(evt.OrderItems, -1)
	if err != nil {
		return err
	}
	err = l.repo.ApplyAdjustment(ctx, evt.OrderCode, evt.OrderStatus, deltas)
	if err == nil {
		l.logger.Info("stock decremented",
			zap.String("order_code", evt.OrderCode),
			zap.Int("items", len(deltas)),
		)
		return nil
	}

	var short *repository.InsufficientStockError
	if errors.As(err, &short) {
		// A business rejection, not a fault: tell the order machine and
		// acknowledge the event.
		return l.rejectOrder(ctx, evt.OrderCode, short)
	}
	return err
}

func (l *InventoryLedger) restoreForOrder(ctx context.Context, evt events.OrderCreatedOrUpdatedEvent) error {
	// Restore only what was decremented: a cancellation for an order that
	// never passed the decrement (e.g. rejected for stock) must not
	// inflate inventory.
	applied, err := l.decrementApplied(ctx, evt.OrderCode)
	if err != nil {
		return apperrors.Transient("adjustment lookup failed", err)
	}
	if !applied {
		l.logger.Info("no decrement on record, skipping restore",
			zap.String("order_code", evt.OrderCode))
		return nil
	}

	deltas, err := toDeltas(evt.OrderItems, 1)
	if err != nil {
		return err
	}
	if err := l.repo.ApplyAdjustment(ctx, evt.OrderCode, models.AdjustmentKindCancelled, deltas); err != nil {
		return err
	}
	l.logger.Info("stock restored after cancellation",
		zap.String("order_code", evt.OrderCode))
	return nil
}

// ApplyRefund restores stock for refunded items, keyed by the refund
// request id.
func (l *InventoryLedger) ApplyRefund(ctx context.Context, evt events.RefundCompletedEvent) error {
	deltas, err := toDeltas(evt.Items, 1)
	if err != nil {
		return err
	}
	if err := l.repo.ApplyAdjustment(ctx, evt.RefundRequestID, models.AdjustmentKindRefund, deltas); err != nil {
		return err
	}
	l.logger.Info("stock restored for refund",
		zap.String("refund_id", evt.RefundRequestID),
		zap.String("order_code", evt.OrderCode),
	)
	return nil
}

func (l *InventoryLedger) decrementApplied(ctx context.Context, orderCode string) (bool, error) {
	for _, kind := range []string{models.AdjustmentKindWaiting, models.AdjustmentKindPending} {
		applied, err := l.repo.WasApplied(ctx, orderCode, kind)
		if err != nil {
			return false, err
		}
		if applied {
			return true, nil
		}
	}
	return false, nil
}

func (l *InventoryLedger) rejectOrder(ctx context.Context, orderCode string, short *repository.InsufficientStockError) error {
	l.logger.Warn("stock adjustment rejected",
		zap.String("order_code", orderCode),
		zap.String("product_id", short.ProductID.String()),
		zap.Int("requested", short.Requested),
		zap.Int("available", short.Available),
	)
	evt := events.StockRejectedEvent{
		OrderCode:  orderCode,
		ProductID:  short.ProductID.String(),
		Requested:  short.Requested,
		Available:  short.Available,
		OccurredAt: time.Now().UTC(),
	}
	if err := l.publisher.PublishJSON(ctx, events.TopicStockRejected, orderCode, evt); err != nil {
		return apperrors.Transient("stock rejection publish failed", err)
	}
	return nil
}

func toDeltas(items []events.OrderEventItem, sign int) ([]models.StockDelta, error) {
	deltas := make([]models.StockDelta, 0, len(items))
	for _, it := range items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, apperrors.Validation("invalid product id %q", it.ProductID)
		}
		if it.Quantity <= 0 {
			return nil, apperrors.Validation("invalid quantity %d for product %s", it.Quantity, it.ProductID)
		}
		d := models.StockDelta{ProductID: productID, Quantity: sign * it.Quantity}
		if it.VariantID != nil {
			variantID, err := uuid.Parse(*it.VariantID)
			if err != nil {
				return nil, apperrors.Validation("invalid variant id %q", *it.VariantID)
			}
			d.VariantID = &variantID
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}
