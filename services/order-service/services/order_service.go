package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	awspkg "github.com/shoplet/marketplace-backend/pkg/aws"
	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/order-service/models"
	"github.com/shoplet/marketplace-backend/services/order-service/repository"
)

// CheckoutItem is one requested line in a checkout command.
type CheckoutItem struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity" binding:"required,min=1"`
	UnitPrice int        `json:"unit_price" binding:"required,min=1"`
	Discount  int        `json:"discount"`
}

// CheckoutRequest creates an order in Waiting and requests its payment.
type CheckoutRequest struct {
	UserID        uuid.UUID      `json:"user_id" binding:"required"`
	ShopID        uuid.UUID      `json:"shop_id" binding:"required"`
	PaymentMethod string         `json:"payment_method" binding:"required"`
	Items         []CheckoutItem `json:"items" binding:"required,dive"`
}

// OrderService is the command surface of the order state machine.
type OrderService interface {
	Checkout(ctx context.Context, req *CheckoutRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByCode(ctx context.Context, code string) (*models.Order, error)
	GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error)

	ConfirmOrder(ctx context.Context, orderID uuid.UUID, actor string) error
	PackOrder(ctx context.Context, orderID uuid.UUID, actor string) error
	ShipOrder(ctx context.Context, orderID uuid.UUID, actor string) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID, actor string) error
	CompleteOrder(ctx context.Context, orderID uuid.UUID, actor string) error
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor string) error
	RateOrder(ctx context.Context, orderID uuid.UUID, actor string, shopRate, userRate int) error
}

type orderServiceImpl struct {
	repo        repository.OrderRepository
	publisher   messaging.Publisher
	snsClient   awspkg.SNSPublisher
	snsTopicArn string
	feeBps      int
	logger      *zap.Logger
}

// NewOrderService creates a new OrderService. feeBps is the platform
// commission in basis points of the order total.
func NewOrderService(
	repo repository.OrderRepository,
	publisher messaging.Publisher,
	snsClient awspkg.SNSPublisher,
	snsTopicArn string,
	feeBps int,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		repo:        repo,
		publisher:   publisher,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		feeBps:      feeBps,
		logger:      logger,
	}
}

func (s *orderServiceImpl) Checkout(ctx context.Context, req *CheckoutRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.Validation("at least one item is required")
	}

	order := &models.Order{
		ID:            uuid.New(),
		OrderCode:     newOrderCode(),
		UserID:        req.UserID,
		ShopID:        req.ShopID,
		Status:        models.OrderStatusWaiting,
		PaymentStatus: models.OrderPaymentPending,
		CreatedBy:     req.UserID.String(),
		ModifiedBy:    req.UserID.String(),
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, apperrors.Validation("quantity must be positive for product %s", it.ProductID)
		}
		if it.Discount < 0 || it.Discount > it.UnitPrice {
			return nil, apperrors.Validation("invalid discount for product %s", it.ProductID)
		}
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  it.Discount,
		})
	}
	order.TotalPrice = order.ComputeTotal()

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.publishOrderEvent(ctx, order, "order created")
	if err := s.publisher.PublishJSON(ctx, events.TopicPaymentRequest, order.ID.String(), events.PaymentRequest{
		OrderID: order.ID.String(),
		UserID:  order.UserID.String(),
		Amount:  order.TotalPrice,
		Method:  req.PaymentMethod,
	}); err != nil {
		// Without the payment request the order would sit in Waiting
		// forever; surface the failure so the client retries the checkout.
		s.logger.Error("payment request publish failed",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, apperrors.Transient("payment request publish failed", err)
	}

	s.logger.Info("order checked out",
		zap.String("order_id", order.ID.String()),
		zap.String("order_code", order.OrderCode),
		zap.Int("total_price", order.TotalPrice),
	)
	return order, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *orderServiceImpl) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	return s.repo.FindByCode(ctx, code)
}

func (s *orderServiceImpl) GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	return s.repo.FindByUserID(ctx, userID, page, limit)
}

func (s *orderServiceImpl) ConfirmOrder(ctx context.Context, orderID uuid.UUID, actor string) error {
	return s.applyTransition(ctx, orderID, actor, (*models.Order).Confirm)
}

func (s *orderServiceImpl) PackOrder(ctx context.Context, orderID uuid.UUID, actor string) error {
	return s.applyTransition(ctx, orderID, actor, (*models.Order).Pack)
}

func (s *orderServiceImpl) ShipOrder(ctx context.Context, orderID uuid.UUID, actor string) error {
	return s.applyTransition(ctx, orderID, actor, (*models.Order).Ship)
}

func (s *orderServiceImpl) MarkDelivered(ctx context.Context, orderID uuid.UUID, actor string) error {
	return s.applyTransition(ctx, orderID, actor, (*models.Order).MarkDelivered)
}

func (s *orderServiceImpl) CompleteOrder(ctx context.Context, orderID uuid.UUID, actor string) error {
	return s.applyTransition(ctx, orderID, actor, (*models.Order).Complete)
}

func (s *orderServiceImpl) CancelOrder(ctx context.Context, orderID uuid.UUID, actor string) error {
	return s.applyTransition(ctx, orderID, actor, (*models.Order).Cancel)
}

// RateOrder publishes the rating side channel; only completed orders can
// be rated.
func (s *orderServiceImpl) RateOrder(ctx context.Context, orderID uuid.UUID, actor string, shopRate, userRate int) error {
	if shopRate < 0 || shopRate > 5 || userRate < 0 || userRate > 5 {
		return apperrors.Validation("rates must be between 0 and 5")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusCompleted {
		return apperrors.StateConflict("order %s is not completed", order.OrderCode)
	}
	evt := events.OrderCreatedOrUpdatedEvent{
		OrderCode:   order.OrderCode,
		UserID:      order.UserID.String(),
		Message:     fmt.Sprintf("rated by %s", actor),
		OrderStatus: string(order.Status),
		OrderItems:  order.ToEventItems(),
		ShopRate:    shopRate,
		UserRate:    userRate,
	}
	return s.publisher.PublishJSON(ctx, events.TopicOrderCreatedOrUpdated, order.OrderCode, evt)
}

// applyTransition is the shared write path: load, guard, persist with the
// version stamp, then publish.
func (s *orderServiceImpl) applyTransition(
	ctx context.Context,
	orderID uuid.UUID,
	actor string,
	fn func(*models.Order, string) (*events.OrderStatusChanged, error),
) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	statusEvt, err := fn(order, actor)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateWithVersion(ctx, order); err != nil {
		return err
	}

	if err := s.publisher.PublishJSON(ctx, events.TopicOrderStatusChanged, order.ID.String(), statusEvt); err != nil {
		s.logger.Error("status event publish failed",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}
	s.publishOrderEvent(ctx, order, statusEvt.NewStatus)

	if order.Status == models.OrderStatusCompleted {
		s.requestSettlement(ctx, order)
	}

	s.logger.Info("order transitioned",
		zap.String("order_id", order.ID.String()),
		zap.String("previous", statusEvt.PreviousStatus),
		zap.String("new", statusEvt.NewStatus),
		zap.String("changed_by", actor),
	)
	return nil
}

// publishOrderEvent emits the item-carrying event the inventory ledger
// consumes, with a best-effort SNS mirror.
func (s *orderServiceImpl) publishOrderEvent(ctx context.Context, order *models.Order, message string) {
	evt := events.OrderCreatedOrUpdatedEvent{
		OrderCode:   order.OrderCode,
		UserID:      order.UserID.String(),
		Message:     message,
		OrderStatus: string(order.Status),
		OrderItems:  order.ToEventItems(),
	}
	if err := s.publisher.PublishJSON(ctx, events.TopicOrderCreatedOrUpdated, order.OrderCode, evt); err != nil {
		s.logger.Error("order event publish failed",
			zap.String("order_code", order.OrderCode), zap.Error(err))
		return
	}
	if s.snsClient != nil && s.snsTopicArn != "" {
		body := fmt.Sprintf(`{"order_code":%q,"order_status":%q}`, order.OrderCode, order.Status)
		if err := s.snsClient.Publish(ctx, s.snsTopicArn, []byte(body)); err != nil {
			// SNS mirror is best-effort.
			s.logger.Warn("sns publish failed", zap.Error(err))
		}
	}
}

func (s *orderServiceImpl) requestSettlement(ctx context.Context, order *models.Order) {
	fee := order.TotalPrice * s.feeBps / 10000
	req := events.ShopPaymentRequest{
		OrderID:              order.ID.String(),
		ShopID:               order.ShopID.String(),
		Amount:               order.TotalPrice,
		Fee:                  fee,
		TransactionType:      "Commission",
		TransactionReference: order.ID.String(),
		Description:          fmt.Sprintf("settlement for order %s", order.OrderCode),
	}
	if err := s.publisher.PublishJSON(ctx, events.TopicShopPaymentRequest, order.ID.String(), req); err != nil {
		s.logger.Error("settlement request publish failed",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

func newOrderCode() string {
	return "ORD-" + time.Now().Format("20060102-150405") + "-" + uuid.New().String()[:8]
}
