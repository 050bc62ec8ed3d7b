package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/product-service/models"
	"github.com/shoplet/marketplace-backend/services/product-service/repository"
	"github.com/shoplet/marketplace-backend/services/product-service/services"
)

// ---- mock repository ----

type appliedAdjustment struct {
	Reference string
	Kind      string
	Deltas    []models.StockDelta
}

type mockProductRepo struct {
	applied  []appliedAdjustment
	ledger   map[string]bool
	applyErr error
	wasErr   error
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{ledger: make(map[string]bool)}
}

func ledgerKey(reference, kind string) string { return reference + "/" + kind }

func (m *mockProductRepo) Create(_ context.Context, _ *models.Product) error { return nil }

func (m *mockProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	return nil, apperrors.NotFound("product %s not found", id)
}

func (m *mockProductRepo) GetStock(_ context.Context, _ uuid.UUID, _ *uuid.UUID) (int, error) {
	return 0, nil
}

func (m *mockProductRepo) ApplyAdjustment(_ context.Context, reference, kind string, deltas []models.StockDelta) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	if m.ledger[ledgerKey(reference, kind)] {
		return nil
	}
	m.ledger[ledgerKey(reference, kind)] = true
	m.applied = append(m.applied, appliedAdjustment{Reference: reference, Kind: kind, Deltas: deltas})
	return nil
}

func (m *mockProductRepo) WasApplied(_ context.Context, reference, kind string) (bool, error) {
	if m.wasErr != nil {
		return false, m.wasErr
	}
	return m.ledger[ledgerKey(reference, kind)], nil
}

// ---- mock publisher ----

type published struct {
	Topic string
	Key   string
	Value []byte
}

type mockPublisher struct {
	messages []published
}

func (m *mockPublisher) Publish(_ context.Context, topic, key string, value []byte) error {
	m.messages = append(m.messages, published{Topic: topic, Key: key, Value: value})
	return nil
}

func (m *mockPublisher) PublishJSON(ctx context.Context, topic, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return m.Publish(ctx, topic, key, data)
}

// ---- helpers ----

func newTestLedger(repo *mockProductRepo, pub *mockPublisher) *services.InventoryLedger {
	logger, _ := zap.NewDevelopment()
	return services.NewInventoryLedger(repo, pub, logger)
}

func orderEvent(code, status string, items ...events.OrderEventItem) events.OrderCreatedOrUpdatedEvent {
	return events.OrderCreatedOrUpdatedEvent{
		OrderCode:   code,
		UserID:      uuid.NewString(),
		OrderStatus: status,
		OrderItems:  items,
	}
}

// ---- tests ----

func TestApplyOrderEvent_DecrementsOnWaiting(t *testing.T) {
	repo := newMockProductRepo()
	ledger := newTestLedger(repo, &mockPublisher{})
	productA, productB := uuid.NewString(), uuid.NewString()

	evt := orderEvent("ORD-1", "Waiting",
		events.OrderEventItem{ProductID: productA, Quantity: 3},
		events.OrderEventItem{ProductID: productB, Quantity: 1},
	)
	err := ledger.ApplyOrderEvent(context.Background(), evt)

	assert.Nil(t, err)
	assert.Len(t, repo.applied, 1)
	assert.Equal(t, "ORD-1", repo.applied[0].Reference)
	assert.Equal(t, models.AdjustmentKindWaiting, repo.applied[0].Kind)
	assert.Equal(t, -3, repo.applied[0].Deltas[0].Quantity)
	assert.Equal(t, -1, repo.applied[0].Deltas[1].Quantity)
}

func TestApplyOrderEvent_DecrementsExactlyOnceAcrossStatuses(t *testing.T) {
	repo := newMockProductRepo()
	ledger := newTestLedger(repo, &mockPublisher{})
	product := uuid.NewString()
	item := events.OrderEventItem{ProductID: product, Quantity: 2}

	assert.Nil(t, ledger.ApplyOrderEvent(context.Background(), orderEvent("ORD-1", "Waiting", item)))
	// Redelivery of the same event.
	assert.Nil(t, ledger.ApplyOrderEvent(context.Background(), orderEvent("ORD-1", "Waiting", item)))
	// Pending is also a decrement trigger, but the order already paid its
	// stock cost.
	assert.Nil(t, ledger.ApplyOrderEvent(context.Background(), orderEvent("ORD-1", "Pending", item)))

	assert.Len(t, repo.applied, 1)
}

func TestApplyOrderEvent_CancelledRestoresOnce(t *testing.T) {
	repo := newMockProductRepo()
	ledger := newTestLedger(repo, &mockPublisher{})
	item := events.OrderEventItem{ProductID: uuid.NewString(), Quantity: 2}

	assert.Nil(t, ledger.ApplyOrderEvent(context.Background(), orderEvent("ORD-1", "Waiting", item)))
	assert.Nil(t, ledger.ApplyOrderEvent(context.Background(), orderEvent("ORD-1", "Cancelled", item)))
	// Redelivered cancellation restores exactly once.
	assert.Nil(t, ledger.ApplyOrderEvent(context.Background(), orderEvent("ORD-1", "Cancelled", item)))

	assert.Len(t, repo.applied, 2)
	restore := repo.applied[1]
	assert.Equal(t, models.AdjustmentKindCancelled, restore.Kind)
	assert.Equal(t, 2, restore.Deltas[0].Quantity)
}

func TestApplyOrderEvent_CancelWithoutDecrementDoesNotInflate(t *testing.T) {
	repo := newMockProductRepo()
	ledger := newTestLedger(repo, &mockPublisher{})
	item := events.OrderEventItem{ProductID: uuid.NewString(), Quantity: 2}

	// The order was rejected before any decrement applied.
	err := ledger.ApplyOrderEvent(context.Background(), orderEvent("ORD-1", "Cancelled", item))

	assert.Nil(t, err)
	assert.Empty(t, repo.applied)
}

func TestApplyOrderEvent_InsufficientStockPublishesRejection(t *testing.T) {
	repo := newMockProductRepo()
	productID := uuid.New()
	repo.applyErr = &repository.InsufficientStockError{ProductID: productID, Requested: 5, Available: 2}
	pub := &mockPublisher{}
	ledger := newTestLedger(repo, pub)

	evt := orderEvent("ORD-1", "Waiting", events.OrderEventItem{ProductID: productID.String(), Quantity: 5})
	err := ledger.ApplyOrderEvent(context.Background(), evt)

	// A business rejection acknowledges the event instead of retrying it.
	assert.Nil(t, err)
	assert.Len(t, pub.messages, 1)
	assert.Equal(t, events.TopicStockRejected, pub.messages[0].Topic)

	var rejected events.StockRejectedEvent
	assert.Nil(t, json.Unmarshal(pub.messages[0].Value, &rejected))
	assert.Equal(t, "ORD-1", rejected.OrderCode)
	assert.Equal(t, productID.String(), rejected.ProductID)
	assert.Equal(t, 5, rejected.Requested)
	assert.Equal(t, 2, rejected.Available)
}

func TestApplyOrderEvent_TransientFailureIsRetryable(t *testing.T) {
	repo := newMockProductRepo()
	repo.applyErr = fmt.Errorf("connection reset")
	ledger := newTestLedger(repo, &mockPublisher{})

	evt := orderEvent("ORD-1", "Waiting", events.OrderEventItem{ProductID: uuid.NewString(), Quantity: 1})
	err := ledger.ApplyOrderEvent(context.Background(), evt)

	assert.NotNil(t, err)
}

func TestApplyOrderEvent_VariantDeltaCarriesVariant(t *testing.T) {
	repo := newMockProductRepo()
	ledger := newTestLedger(repo, &mockPublisher{})
	variant := uuid.NewString()

	evt := orderEvent("ORD-1", "Waiting",
		events.OrderEventItem{ProductID: uuid.NewString(), VariantID: &variant, Quantity: 1})
	assert.Nil(t, ledger.ApplyOrderEvent(context.Background(), evt))

	assert.NotNil(t, repo.applied[0].Deltas[0].VariantID)
	assert.Equal(t, variant, repo.applied[0].Deltas[0].VariantID.String())
}

func TestApplyRefund_RestoresKeyedByRefundID(t *testing.T) {
	repo := newMockProductRepo()
	ledger := newTestLedger(repo, &mockPublisher{})
	refundID := uuid.NewString()

	evt := events.RefundCompletedEvent{
		RefundRequestID: refundID,
		OrderCode:       "ORD-1",
		Items:           []events.OrderEventItem{{ProductID: uuid.NewString(), Quantity: 2}},
	}
	assert.Nil(t, ledger.ApplyRefund(context.Background(), evt))
	// Redelivery is absorbed by the ledger key.
	assert.Nil(t, ledger.ApplyRefund(context.Background(), evt))

	assert.Len(t, repo.applied, 1)
	assert.Equal(t, refundID, repo.applied[0].Reference)
	assert.Equal(t, models.AdjustmentKindRefund, repo.applied[0].Kind)
	assert.Equal(t, 2, repo.applied[0].Deltas[0].Quantity)
}

func TestOrderEventConsumer_RoutesToLedger(t *testing.T) {
	repo := newMockProductRepo()
	ledger := newTestLedger(repo, &mockPublisher{})
	consumer := services.NewOrderEventConsumer(ledger, "product-service")

	payload, _ := json.Marshal(orderEvent("ORD-1", "Waiting",
		events.OrderEventItem{ProductID: uuid.NewString(), Quantity: 1}))
	err := consumer.Handle(context.Background(), messaging.Message{Value: payload})

	assert.Nil(t, err)
	assert.Len(t, repo.applied, 1)
}
