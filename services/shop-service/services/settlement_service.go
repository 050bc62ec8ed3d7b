package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/shop-service/models"
	"github.com/shoplet/marketplace-backend/services/shop-service/repository"
)

// PlatformWalletOwner is the fixed owner id of the platform's own wallet,
// which accumulates commission fees.
var PlatformWalletOwner = uuid.Nil

// SettlementService applies wallet movements requested by the order
// service. Every movement is keyed by (reference, purpose): a Success
// transaction for the key makes redelivery a no-op, and the wallet update
// plus the transaction row commit together or not at all.
type SettlementService interface {
	HandleShopPayment(ctx context.Context, evt events.ShopPaymentRequest) error
	GetWallet(ctx context.Context, ownerID uuid.UUID, ownerType string) (*models.Wallet, error)
}

type settlementServiceImpl struct {
	wallets repository.WalletRepository
	logger  *zap.Logger
}

func NewSettlementService(wallets repository.WalletRepository, logger *zap.Logger) SettlementService {
	return &settlementServiceImpl{wallets: wallets, logger: logger}
}

func (s *settlementServiceImpl) HandleShopPayment(ctx context.Context, evt events.ShopPaymentRequest) error {
	shopID, err := uuid.Parse(evt.ShopID)
	if err != nil {
		return apperrors.Validation("invalid shop id %q", evt.ShopID)
	}
	if evt.Amount <= 0 {
		return apperrors.Validation("settlement amount must be positive, got %d", evt.Amount)
	}

	switch evt.TransactionType {
	case models.TransactionTypeCommission:
		// Shop earns the order total minus the platform's cut; the cut
		// lands on the platform wallet under its own key.
		if err := s.settle(ctx, shopID, models.WalletOwnerShop,
			evt.TransactionType, evt.Amount-evt.Fee,
			evt.TransactionReference, models.PurposeCredit, evt.Description); err != nil {
			return err
		}
		if evt.Fee > 0 {
			return s.settle(ctx, PlatformWalletOwner, models.WalletOwnerPlatform,
				evt.TransactionType, evt.Fee,
				evt.TransactionReference, models.PurposeFee, "platform commission fee")
		}
		return nil
	case models.TransactionTypeRefund:
		return s.settle(ctx, shopID, models.WalletOwnerShop,
			evt.TransactionType, -evt.Amount,
			evt.TransactionReference, models.PurposeDebit, evt.Description)
	default:
		return apperrors.Validation("unknown transaction type %q", evt.TransactionType)
	}
}

// settle applies one signed wallet movement idempotently.
func (s *settlementServiceImpl) settle(ctx context.Context, ownerID uuid.UUID, ownerType, txType string, delta int, reference, purpose, description string) error {
	existing, err := s.wallets.FindTransaction(ctx, reference, purpose)
	if err != nil {
		return apperrors.Transient("transaction lookup failed", err)
	}
	if existing != nil && existing.Status == models.TransactionStatusSuccess {
		s.logger.Info("settlement replayed, skipping",
			zap.String("reference", reference),
			zap.String("purpose", purpose),
		)
		return nil
	}

	row := existing
	if row == nil {
		row = &models.WalletTransaction{
			ID:          uuid.New(),
			Type:        txType,
			Status:      models.TransactionStatusPending,
			Amount:      delta,
			Reference:   reference,
			Purpose:     purpose,
			Description: description,
		}
	}

	if err := s.wallets.ApplySettlement(ctx, ownerID, ownerType, delta, row); err != nil {
		row.Status = models.TransactionStatusFailed
		if saveErr := s.wallets.SaveTransaction(ctx, row); saveErr != nil {
			s.logger.Error("failed to record failed settlement",
				zap.String("reference", reference),
				zap.Error(saveErr),
			)
		}
		return err
	}

	s.logger.Info("wallet settled",
		zap.String("owner_type", ownerType),
		zap.String("reference", reference),
		zap.String("purpose", purpose),
		zap.Int("delta", delta),
	)
	return nil
}

func (s *settlementServiceImpl) GetWallet(ctx context.Context, ownerID uuid.UUID, ownerType string) (*models.Wallet, error) {
	return s.wallets.FindWallet(ctx, ownerID, ownerType)
}
