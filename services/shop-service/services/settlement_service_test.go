package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/shop-service/models"
	"github.com/shoplet/marketplace-backend/services/shop-service/services"
)

// ---- mock wallet repository ----

type settlement struct {
	OwnerID   uuid.UUID
	OwnerType string
	Delta     int
	Row       *models.WalletTransaction
}

type mockWalletRepo struct {
	transactions map[string]*models.WalletTransaction
	settled      []settlement
	saved        []*models.WalletTransaction
	applyErr     error
}

func newMockWalletRepo() *mockWalletRepo {
	return &mockWalletRepo{transactions: make(map[string]*models.WalletTransaction)}
}

func txKey(reference, purpose string) string { return reference + "/" + purpose }

func (m *mockWalletRepo) FindWallet(_ context.Context, ownerID uuid.UUID, ownerType string) (*models.Wallet, error) {
	balance := 0
	for _, s := range m.settled {
		if s.OwnerID == ownerID && s.OwnerType == ownerType {
			balance += s.Delta
		}
	}
	return &models.Wallet{ID: uuid.New(), OwnerID: ownerID, OwnerType: ownerType, Balance: balance}, nil
}

func (m *mockWalletRepo) FindTransaction(_ context.Context, reference, purpose string) (*models.WalletTransaction, error) {
	return m.transactions[txKey(reference, purpose)], nil
}

func (m *mockWalletRepo) ApplySettlement(_ context.Context, ownerID uuid.UUID, ownerType string, delta int, tx *models.WalletTransaction) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	tx.Status = models.TransactionStatusSuccess
	m.transactions[txKey(tx.Reference, tx.Purpose)] = tx
	m.settled = append(m.settled, settlement{OwnerID: ownerID, OwnerType: ownerType, Delta: delta, Row: tx})
	return nil
}

func (m *mockWalletRepo) SaveTransaction(_ context.Context, tx *models.WalletTransaction) error {
	m.transactions[txKey(tx.Reference, tx.Purpose)] = tx
	m.saved = append(m.saved, tx)
	return nil
}

// ---- helpers ----

func newTestSettlementService(repo *mockWalletRepo) services.SettlementService {
	logger, _ := zap.NewDevelopment()
	return services.NewSettlementService(repo, logger)
}

func commissionRequest(shopID uuid.UUID, orderID string, amount, fee int) events.ShopPaymentRequest {
	return events.ShopPaymentRequest{
		OrderID:              orderID,
		ShopID:               shopID.String(),
		Amount:               amount,
		Fee:                  fee,
		TransactionType:      models.TransactionTypeCommission,
		TransactionReference: orderID,
		Description:          "order completed",
	}
}

// ---- tests ----

func TestHandleShopPayment_CommissionSplitsShopAndPlatform(t *testing.T) {
	repo := newMockWalletRepo()
	svc := newTestSettlementService(repo)
	shopID := uuid.New()
	orderID := uuid.NewString()

	err := svc.HandleShopPayment(context.Background(), commissionRequest(shopID, orderID, 2000, 100))

	assert.Nil(t, err)
	assert.Len(t, repo.settled, 2)

	shop := repo.settled[0]
	assert.Equal(t, shopID, shop.OwnerID)
	assert.Equal(t, models.WalletOwnerShop, shop.OwnerType)
	assert.Equal(t, 1900, shop.Delta)
	assert.Equal(t, models.PurposeCredit, shop.Row.Purpose)
	assert.Equal(t, orderID, shop.Row.Reference)

	platform := repo.settled[1]
	assert.Equal(t, services.PlatformWalletOwner, platform.OwnerID)
	assert.Equal(t, models.WalletOwnerPlatform, platform.OwnerType)
	assert.Equal(t, 100, platform.Delta)
	assert.Equal(t, models.PurposeFee, platform.Row.Purpose)
}

func TestHandleShopPayment_ReplayedCommissionIsNoOp(t *testing.T) {
	repo := newMockWalletRepo()
	svc := newTestSettlementService(repo)
	evt := commissionRequest(uuid.New(), uuid.NewString(), 2000, 100)

	assert.Nil(t, svc.HandleShopPayment(context.Background(), evt))
	// At-least-once delivery hands the same request over again.
	assert.Nil(t, svc.HandleShopPayment(context.Background(), evt))

	assert.Len(t, repo.settled, 2)
}

func TestHandleShopPayment_ZeroFeeSkipsPlatformCredit(t *testing.T) {
	repo := newMockWalletRepo()
	svc := newTestSettlementService(repo)

	err := svc.HandleShopPayment(context.Background(), commissionRequest(uuid.New(), uuid.NewString(), 2000, 0))

	assert.Nil(t, err)
	assert.Len(t, repo.settled, 1)
	assert.Equal(t, 2000, repo.settled[0].Delta)
}

func TestHandleShopPayment_RefundDebitsShopWallet(t *testing.T) {
	repo := newMockWalletRepo()
	svc := newTestSettlementService(repo)
	shopID := uuid.New()
	refundID := uuid.NewString()

	err := svc.HandleShopPayment(context.Background(), events.ShopPaymentRequest{
		OrderID:              uuid.NewString(),
		ShopID:               shopID.String(),
		Amount:               500,
		TransactionType:      models.TransactionTypeRefund,
		TransactionReference: refundID,
		Description:          "refund completed",
	})

	assert.Nil(t, err)
	assert.Len(t, repo.settled, 1)
	assert.Equal(t, -500, repo.settled[0].Delta)
	assert.Equal(t, models.PurposeDebit, repo.settled[0].Row.Purpose)
	assert.Equal(t, refundID, repo.settled[0].Row.Reference)
}

func TestHandleShopPayment_FailureRecordsFailedRowAndSurfaces(t *testing.T) {
	repo := newMockWalletRepo()
	repo.applyErr = apperrors.VersionConflict("wallet version changed")
	svc := newTestSettlementService(repo)

	err := svc.HandleShopPayment(context.Background(), commissionRequest(uuid.New(), uuid.NewString(), 2000, 100))

	assert.NotNil(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Len(t, repo.saved, 1)
	assert.Equal(t, models.TransactionStatusFailed, repo.saved[0].Status)
}

func TestHandleShopPayment_RetryReusesFailedRow(t *testing.T) {
	repo := newMockWalletRepo()
	repo.applyErr = apperrors.VersionConflict("wallet version changed")
	svc := newTestSettlementService(repo)
	evt := commissionRequest(uuid.New(), uuid.NewString(), 2000, 100)

	assert.NotNil(t, svc.HandleShopPayment(context.Background(), evt))
	failed := repo.saved[0]

	repo.applyErr = nil
	assert.Nil(t, svc.HandleShopPayment(context.Background(), evt))

	// The redelivery settles through the same ledger row instead of
	// inserting a second one for the key.
	assert.Equal(t, failed.ID, repo.settled[0].Row.ID)
	assert.Equal(t, models.TransactionStatusSuccess, repo.settled[0].Row.Status)
}

func TestHandleShopPayment_Validation(t *testing.T) {
	svc := newTestSettlementService(newMockWalletRepo())

	cases := []struct {
		name string
		evt  events.ShopPaymentRequest
	}{
		{"bad shop id", events.ShopPaymentRequest{ShopID: "not-a-uuid", Amount: 100, TransactionType: models.TransactionTypeCommission}},
		{"non-positive amount", events.ShopPaymentRequest{ShopID: uuid.NewString(), Amount: 0, TransactionType: models.TransactionTypeCommission}},
		{"unknown type", events.ShopPaymentRequest{ShopID: uuid.NewString(), Amount: 100, TransactionType: "Payout"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.HandleShopPayment(context.Background(), tc.evt)
			assert.NotNil(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}
}

func TestShopPaymentConsumer_RoutesToSettlement(t *testing.T) {
	repo := newMockWalletRepo()
	consumer := services.NewShopPaymentConsumer(newTestSettlementService(repo), "shop-service")

	payload, _ := json.Marshal(commissionRequest(uuid.New(), uuid.NewString(), 1000, 50))
	err := consumer.Handle(context.Background(), messaging.Message{Value: payload})

	assert.Nil(t, err)
	assert.Len(t, repo.settled, 2)
}
