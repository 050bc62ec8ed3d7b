package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/payment-service/models"
	"github.com/shoplet/marketplace-backend/services/payment-service/repository"
)

// PaymentService owns the payment state machine.
type PaymentService interface {
	CreateForOrder(ctx context.Context, orderID, userID uuid.UUID, amount int, method string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	// AttachProviderRef stores the provider intent id on the order's
	// payment. Re-attaching the same ref is a no-op.
	AttachProviderRef(ctx context.Context, orderID uuid.UUID, providerCode string) error
	// HandleProviderResult applies a provider callback. Callbacks arrive at
	// least once; a repeat for a settled payment is a logged no-op.
	HandleProviderResult(ctx context.Context, orderID uuid.UUID, succeeded bool, providerCode string, fee int) error
	RefundForOrder(ctx context.Context, orderID uuid.UUID) error
}

type paymentServiceImpl struct {
	repo      repository.PaymentRepository
	publisher messaging.Publisher
	provider  ProviderClient
	logger    *zap.Logger
}

func NewPaymentService(repo repository.PaymentRepository, publisher messaging.Publisher, provider ProviderClient, logger *zap.Logger) PaymentService {
	return &paymentServiceImpl{repo: repo, publisher: publisher, provider: provider, logger: logger}
}

func (s *paymentServiceImpl) CreateForOrder(ctx context.Context, orderID, userID uuid.UUID, amount int, method string) (*models.Payment, error) {
	if amount <= 0 {
		return nil, apperrors.Validation("payment amount must be positive")
	}
	payment := &models.Payment{
		ID:      uuid.New(),
		OrderID: orderID,
		UserID:  userID,
		Amount:  amount,
		Method:  method,
		Status:  models.PaymentStatusPending,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}
	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", orderID.String()),
		zap.Int("amount", amount),
	)
	return payment, nil
}

func (s *paymentServiceImpl) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return s.repo.FindByOrderID(ctx, orderID)
}

func (s *paymentServiceImpl) AttachProviderRef(ctx context.Context, orderID uuid.UUID, providerCode string) error {
	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if payment.ProviderCode != nil && *payment.ProviderCode == providerCode {
		return nil
	}
	payment.ProviderCode = &providerCode
	if err := s.repo.UpdateWithVersion(ctx, payment); err != nil {
		return err
	}
	s.logger.Info("provider ref attached",
		zap.String("payment_id", payment.ID.String()),
		zap.String("provider_code", providerCode),
	)
	return nil
}

func (s *paymentServiceImpl) HandleProviderResult(ctx context.Context, orderID uuid.UUID, succeeded bool, providerCode string, fee int) error {
	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	if payment.Status != models.PaymentStatusPending {
		// Redelivered callback: ProcessedAt and Fee stay untouched and no
		// duplicate event is produced.
		s.logger.Info("duplicate provider callback ignored",
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", string(payment.Status)),
		)
		return nil
	}

	if succeeded {
		err = payment.MarkSuccessful(providerCode, fee)
	} else {
		err = payment.MarkFailed(providerCode)
	}
	if err != nil {
		return err
	}
	if err := s.repo.UpdateWithVersion(ctx, payment); err != nil {
		return err
	}
	return s.publishStatus(ctx, payment)
}

// RefundForOrder repays the buyer at the provider and releases the
// captured payment once a refund request completed.
func (s *paymentServiceImpl) RefundForOrder(ctx context.Context, orderID uuid.UUID) error {
	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if payment.Status == models.PaymentStatusRefunded {
		// A later refund request against the same payment still needs the
		// Refunded event to close its own loop downstream.
		s.logger.Info("payment already refunded, re-emitting status",
			zap.String("payment_id", payment.ID.String()))
		return s.publishStatus(ctx, payment)
	}
	if payment.Status != models.PaymentStatusPaid {
		return apperrors.StateConflict("payment %s is %s, not Paid", payment.ID, payment.Status)
	}
	// Repay the buyer at the provider first: a provider outage leaves the
	// payment Paid and the bus redelivers.
	if s.provider != nil && payment.ProviderCode != nil {
		if err := s.provider.Refund(*payment.ProviderCode); err != nil {
			return apperrors.Transient("provider refund failed", err)
		}
	}
	if err := payment.Refund(); err != nil {
		return err
	}
	if err := s.repo.UpdateWithVersion(ctx, payment); err != nil {
		return err
	}
	return s.publishStatus(ctx, payment)
}

func (s *paymentServiceImpl) publishStatus(ctx context.Context, payment *models.Payment) error {
	evt := events.PaymentStatusChanged{
		PaymentID:    payment.ID.String(),
		OrderID:      payment.OrderID.String(),
		UserID:       payment.UserID.String(),
		NewStatus:    string(payment.Status),
		Amount:       payment.Amount,
		ProviderCode: payment.ProviderCode,
		UpdatedAt:    payment.UpdatedAt,
	}
	if err := s.publisher.PublishJSON(ctx, events.TopicPaymentStatusChanged, payment.OrderID.String(), evt); err != nil {
		return apperrors.Transient("payment event publish failed", err)
	}
	return nil
}
