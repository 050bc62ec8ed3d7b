package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/order-service/models"
	"github.com/shoplet/marketplace-backend/services/order-service/repository"
)

// RefundItemRequest is one line of a refund command.
type RefundItemRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id" binding:"required"`
	Reason      string    `json:"reason" binding:"required"`
	EvidenceURL string    `json:"evidence_url"`
}

type CreateRefundRequest struct {
	OrderID     uuid.UUID           `json:"order_id" binding:"required"`
	RequestedBy uuid.UUID           `json:"requested_by" binding:"required"`
	Items       []RefundItemRequest `json:"items" binding:"required,dive"`
}

// RefundService owns the refund-request sub-saga.
type RefundService interface {
	Create(ctx context.Context, req *CreateRefundRequest) (*models.RefundRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error)
	Advance(ctx context.Context, id uuid.UUID, to models.RefundStatus, actor string) error
	Reject(ctx context.Context, id uuid.UUID, actor string) error
}

type refundServiceImpl struct {
	refunds   repository.RefundRepository
	orders    repository.OrderRepository
	publisher messaging.Publisher
	logger    *zap.Logger
}

func NewRefundService(
	refunds repository.RefundRepository,
	orders repository.OrderRepository,
	publisher messaging.Publisher,
	logger *zap.Logger,
) RefundService {
	return &refundServiceImpl{
		refunds:   refunds,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
	}
}

// Create validates and opens a refund request. All referenced items must
// belong to the order, none may be covered by another non-rejected request,
// and the implied amount cannot exceed the items' paid price.
func (s *refundServiceImpl) Create(ctx context.Context, req *CreateRefundRequest) (*models.RefundRequest, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.Validation("at least one item is required")
	}

	order, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDelivered && order.Status != models.OrderStatusCompleted {
		return nil, apperrors.StateConflict("order %s is not refundable from %s", order.OrderCode, order.Status)
	}
	if order.UserID != req.RequestedBy {
		return nil, apperrors.Validation("refund can only be requested by the order's buyer")
	}

	taken, err := s.refunds.ActiveItemIDs(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.OrderItem, len(order.Items))
	for _, it := range order.Items {
		byID[it.ID] = it
	}

	refund := &models.RefundRequest{
		ID:          uuid.New(),
		OrderID:     order.ID,
		RequestedBy: req.RequestedBy,
		Status:      models.RefundStatusCreated,
	}
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, line := range req.Items {
		orderItem, ok := byID[line.OrderItemID]
		if !ok {
			return nil, apperrors.Validation("item %s does not belong to order %s", line.OrderItemID, order.OrderCode)
		}
		if seen[line.OrderItemID] {
			return nil, apperrors.Validation("item %s listed twice", line.OrderItemID)
		}
		seen[line.OrderItemID] = true
		if taken[line.OrderItemID] {
			return nil, apperrors.Validation("item %s is already covered by another refund request", line.OrderItemID)
		}
		refund.Items = append(refund.Items, models.RefundItem{
			ID:              uuid.New(),
			RefundRequestID: refund.ID,
			OrderItemID:     line.OrderItemID,
			Reason:          line.Reason,
			EvidenceURL:     line.EvidenceURL,
			UnitPrice:       orderItem.UnitPrice - orderItem.Discount,
			Quantity:        orderItem.Quantity,
		})
	}
	refund.RefundAmount = refund.ComputeAmount()
	if refund.RefundAmount > order.TotalPrice {
		return nil, apperrors.Validation("refund amount %d exceeds order total %d", refund.RefundAmount, order.TotalPrice)
	}

	if err := s.refunds.Create(ctx, refund); err != nil {
		return nil, err
	}

	// A refund covering every item starts the order's return leg.
	if len(seen) == len(order.Items) {
		if evt, err := order.BeginReturn(req.RequestedBy.String()); err == nil {
			if err := s.orders.UpdateWithVersion(ctx, order); err != nil {
				s.logger.Warn("order return transition not persisted", zap.Error(err))
			} else if err := s.publisher.PublishJSON(ctx, events.TopicOrderStatusChanged, order.ID.String(), evt); err != nil {
				s.logger.Error("status event publish failed", zap.Error(err))
			}
		}
	}

	s.logger.Info("refund request created",
		zap.String("refund_id", refund.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.Int("amount", refund.RefundAmount),
	)
	return refund, nil
}

func (s *refundServiceImpl) Get(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	return s.refunds.FindByID(ctx, id)
}

// Advance moves the request forward one state. Reaching Completed triggers
// the compensations: stock restore, wallet debit, and payment refund, all
// keyed by the refund request id for idempotency.
func (s *refundServiceImpl) Advance(ctx context.Context, id uuid.UUID, to models.RefundStatus, actor string) error {
	refund, err := s.refunds.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := refund.Advance(to, actor); err != nil {
		return err
	}
	if err := s.refunds.UpdateWithVersion(ctx, refund); err != nil {
		return err
	}

	if to == models.RefundStatusCompleted {
		if err := s.fanOutCompensations(ctx, refund); err != nil {
			return err
		}
	}

	s.logger.Info("refund advanced",
		zap.String("refund_id", refund.ID.String()),
		zap.String("status", string(to)),
		zap.String("actor", actor),
	)
	return nil
}

func (s *refundServiceImpl) Reject(ctx context.Context, id uuid.UUID, actor string) error {
	refund, err := s.refunds.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := refund.Reject(actor); err != nil {
		return err
	}
	return s.refunds.UpdateWithVersion(ctx, refund)
}

func (s *refundServiceImpl) fanOutCompensations(ctx context.Context, refund *models.RefundRequest) error {
	order, err := s.orders.FindByID(ctx, refund.OrderID)
	if err != nil {
		return err
	}

	itemIDs := make([]uuid.UUID, 0, len(refund.Items))
	byID := make(map[uuid.UUID]models.OrderItem, len(order.Items))
	for _, it := range order.Items {
		byID[it.ID] = it
	}
	wireItems := make([]events.OrderEventItem, 0, len(refund.Items))
	for _, ri := range refund.Items {
		itemIDs = append(itemIDs, ri.OrderItemID)
		if oi, ok := byID[ri.OrderItemID]; ok {
			evt := events.OrderEventItem{
				ProductID: oi.ProductID.String(),
				Quantity:  oi.Quantity,
			}
			if oi.VariantID != nil {
				v := oi.VariantID.String()
				evt.VariantID = &v
			}
			wireItems = append(wireItems, evt)
		}
	}

	if err := s.orders.StampItemsRefund(ctx, itemIDs, refund.ID); err != nil {
		return err
	}

	completed := events.RefundCompletedEvent{
		RefundRequestID: refund.ID.String(),
		OrderID:         order.ID.String(),
		OrderCode:       order.OrderCode,
		ShopID:          order.ShopID.String(),
		Amount:          refund.RefundAmount,
		Items:           wireItems,
		CompletedAt:     time.Now().UTC(),
	}
	if err := s.publisher.PublishJSON(ctx, events.TopicRefundCompleted, refund.ID.String(), completed); err != nil {
		return err
	}

	settle := events.ShopPaymentRequest{
		OrderID:              order.ID.String(),
		ShopID:               order.ShopID.String(),
		Amount:               refund.RefundAmount,
		Fee:                  0,
		TransactionType:      "Refund",
		TransactionReference: refund.ID.String(),
		Description:          fmt.Sprintf("refund %s for order %s", refund.ID, order.OrderCode),
	}
	return s.publisher.PublishJSON(ctx, events.TopicShopPaymentRequest, refund.ID.String(), settle)
}
