package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
	"github.com/shoplet/marketplace-backend/services/common/messaging"
	"github.com/shoplet/marketplace-backend/services/payment-service/models"
	"github.com/shoplet/marketplace-backend/services/payment-service/services"
)

// ---- mock repository ----

type mockPaymentRepo struct {
	created   *models.Payment
	createErr error
	byOrder   map[uuid.UUID]*models.Payment
	updateErr error
	updated   []*models.Payment
}

func newMockPaymentRepo(payments ...*models.Payment) *mockPaymentRepo {
	m := &mockPaymentRepo{byOrder: make(map[uuid.UUID]*models.Payment)}
	for _, p := range payments {
		m.byOrder[p.OrderID] = p
	}
	return m
}

func (m *mockPaymentRepo) Create(_ context.Context, p *models.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = p
	m.byOrder[p.OrderID] = p
	return nil
}

func (m *mockPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	for _, p := range m.byOrder {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.NotFound("payment %s not found", id)
}

func (m *mockPaymentRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if p, ok := m.byOrder[orderID]; ok {
		return p, nil
	}
	return nil, apperrors.NotFound("payment for order %s not found", orderID)
}

func (m *mockPaymentRepo) FindByProviderCode(_ context.Context, code string) (*models.Payment, error) {
	for _, p := range m.byOrder {
		if p.ProviderCode != nil && *p.ProviderCode == code {
			return p, nil
		}
	}
	return nil, apperrors.NotFound("payment with provider code %s not found", code)
}

func (m *mockPaymentRepo) UpdateWithVersion(_ context.Context, p *models.Payment) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	p.UpdatedAt = time.Now().UTC()
	p.Version++
	m.updated = append(m.updated, p)
	return nil
}

// ---- mock publisher ----

type published struct {
	Topic string
	Key   string
	Value []byte
}

type mockPublisher struct {
	messages   []published
	publishErr error
}

func (m *mockPublisher) Publish(_ context.Context, topic, key string, value []byte) error {
	if m.publishErr != nil {
		return m.publishErr
	}
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

func newTestPaymentService(repo *mockPaymentRepo, pub *mockPublisher, provider services.ProviderClient) services.PaymentService {
	logger, _ := zap.NewDevelopment()
	return services.NewPaymentService(repo, pub, provider, logger)
}

func pendingPayment() *models.Payment {
	return &models.Payment{
		ID:      uuid.New(),
		OrderID: uuid.New(),
		UserID:  uuid.New(),
		Amount:  2000,
		Method:  "card",
		Status:  models.PaymentStatusPending,
	}
}

// ---- tests ----

func TestHandleProviderResult_CapturesAndPublishes(t *testing.T) {
	payment := pendingPayment()
	repo := newMockPaymentRepo(payment)
	pub := &mockPublisher{}
	svc := newTestPaymentService(repo, pub, nil)

	before := time.Now().UTC()
	err := svc.HandleProviderResult(context.Background(), payment.OrderID, true, "pi_abc", 58)

	assert.Nil(t, err)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	assert.Len(t, repo.updated, 1)
	assert.Len(t, pub.messages, 1)

	var evt events.PaymentStatusChanged
	assert.Nil(t, json.Unmarshal(pub.messages[0].Value, &evt))
	assert.Equal(t, "Paid", evt.NewStatus)
	assert.Equal(t, payment.OrderID.String(), evt.OrderID)
	assert.Equal(t, 2000, evt.Amount)
	// The event carries the transition time, not the row's creation time.
	assert.False(t, evt.UpdatedAt.Before(before))
}

func TestHandleProviderResult_DuplicateCallbackIsNoOp(t *testing.T) {
	payment := pendingPayment()
	repo := newMockPaymentRepo(payment)
	pub := &mockPublisher{}
	svc := newTestPaymentService(repo, pub, nil)

	assert.Nil(t, svc.HandleProviderResult(context.Background(), payment.OrderID, true, "pi_abc", 58))
	processedAt := payment.ProcessedAt

	// The provider delivers the callback again.
	assert.Nil(t, svc.HandleProviderResult(context.Background(), payment.OrderID, true, "pi_abc", 99))

	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	assert.Equal(t, 58, payment.Fee)
	assert.Equal(t, processedAt, payment.ProcessedAt)
	assert.Len(t, repo.updated, 1)
	assert.Len(t, pub.messages, 1)
}

func TestHandleProviderResult_Failure(t *testing.T) {
	payment := pendingPayment()
	repo := newMockPaymentRepo(payment)
	pub := &mockPublisher{}
	svc := newTestPaymentService(repo, pub, nil)

	err := svc.HandleProviderResult(context.Background(), payment.OrderID, false, "pi_abc", 0)

	assert.Nil(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)

	var evt events.PaymentStatusChanged
	assert.Nil(t, json.Unmarshal(pub.messages[0].Value, &evt))
	assert.Equal(t, "Failed", evt.NewStatus)
}

func TestRefundForOrder_RepaysBuyerAtProvider(t *testing.T) {
	payment := pendingPayment()
	payment.Status = models.PaymentStatusPaid
	code := "pi_abc"
	payment.ProviderCode = &code
	repo := newMockPaymentRepo(payment)
	pub := &mockPublisher{}
	provider := &mockProvider{}
	svc := newTestPaymentService(repo, pub, provider)

	assert.Nil(t, svc.RefundForOrder(context.Background(), payment.OrderID))

	assert.Equal(t, []string{"pi_abc"}, provider.refunds)
	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
	assert.Len(t, pub.messages, 1)
}

func TestRefundForOrder_ProviderFailureLeavesPaymentPaid(t *testing.T) {
	payment := pendingPayment()
	payment.Status = models.PaymentStatusPaid
	code := "pi_abc"
	payment.ProviderCode = &code
	repo := newMockPaymentRepo(payment)
	pub := &mockPublisher{}
	provider := &mockProvider{refundErr: assert.AnError}
	svc := newTestPaymentService(repo, pub, provider)

	err := svc.RefundForOrder(context.Background(), payment.OrderID)

	assert.NotNil(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	assert.Empty(t, repo.updated)
	assert.Empty(t, pub.messages)
}

func TestRefundForOrder_ReplayReEmitsRefundedStatus(t *testing.T) {
	payment := pendingPayment()
	payment.Status = models.PaymentStatusPaid
	code := "pi_abc"
	payment.ProviderCode = &code
	repo := newMockPaymentRepo(payment)
	pub := &mockPublisher{}
	provider := &mockProvider{}
	svc := newTestPaymentService(repo, pub, provider)

	assert.Nil(t, svc.RefundForOrder(context.Background(), payment.OrderID))
	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)

	// A second completed refund request for the same order must still see
	// a Refunded event, but the buyer is repaid only once.
	assert.Nil(t, svc.RefundForOrder(context.Background(), payment.OrderID))
	assert.Len(t, repo.updated, 1)
	assert.Len(t, provider.refunds, 1)
	assert.Len(t, pub.messages, 2)

	var evt events.PaymentStatusChanged
	assert.Nil(t, json.Unmarshal(pub.messages[1].Value, &evt))
	assert.Equal(t, "Refunded", evt.NewStatus)
}

func TestRefundForOrder_RequiresPaid(t *testing.T) {
	payment := pendingPayment()
	repo := newMockPaymentRepo(payment)
	svc := newTestPaymentService(repo, &mockPublisher{}, nil)

	err := svc.RefundForOrder(context.Background(), payment.OrderID)

	assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
}

// ---- consumer tests ----

type mockProvider struct {
	intents     []string
	intentCalls int
	intentErr   error
	refunds     []string
	refundErr   error
}

func (m *mockProvider) CreateIntent(amount int64, currency, orderID string) (string, error) {
	m.intentCalls++
	if m.intentErr != nil {
		return "", m.intentErr
	}
	ref := "pi_" + orderID
	m.intents = append(m.intents, ref)
	return ref, nil
}

func (m *mockProvider) Refund(providerCode string) error {
	if m.refundErr != nil {
		return m.refundErr
	}
	m.refunds = append(m.refunds, providerCode)
	return nil
}

func (m *mockProvider) ParseWebhook(_ *http.Request) (stripe.Event, error) {
	return stripe.Event{}, nil
}

func TestPaymentRequestConsumer_OpensPaymentAndIntent(t *testing.T) {
	repo := newMockPaymentRepo()
	pub := &mockPublisher{}
	provider := &mockProvider{}
	logger, _ := zap.NewDevelopment()
	consumer := services.NewPaymentRequestConsumer(newTestPaymentService(repo, pub, nil), provider, "usd", "payment-service", logger)

	orderID := uuid.New()
	payload, _ := json.Marshal(events.PaymentRequest{
		OrderID: orderID.String(),
		UserID:  uuid.NewString(),
		Amount:  2000,
		Method:  "card",
	})
	err := consumer.Handle(context.Background(), messaging.Message{Value: payload})

	assert.Nil(t, err)
	assert.NotNil(t, repo.created)
	assert.Equal(t, models.PaymentStatusPending, repo.created.Status)
	assert.Len(t, provider.intents, 1)
	// The intent id is persisted on the payment, not just logged.
	assert.NotNil(t, repo.created.ProviderCode)
	assert.Equal(t, "pi_"+orderID.String(), *repo.created.ProviderCode)

	// Redelivery: payment and intent both exist, nothing new is created.
	repo.created = nil
	assert.Nil(t, consumer.Handle(context.Background(), messaging.Message{Value: payload}))
	assert.Nil(t, repo.created)
	assert.Len(t, provider.intents, 1)
}

func TestPaymentRequestConsumer_RedeliveryRetriesFailedIntent(t *testing.T) {
	repo := newMockPaymentRepo()
	pub := &mockPublisher{}
	provider := &mockProvider{intentErr: assert.AnError}
	logger, _ := zap.NewDevelopment()
	consumer := services.NewPaymentRequestConsumer(newTestPaymentService(repo, pub, nil), provider, "usd", "payment-service", logger)

	orderID := uuid.New()
	payload, _ := json.Marshal(events.PaymentRequest{
		OrderID: orderID.String(),
		UserID:  uuid.NewString(),
		Amount:  2000,
		Method:  "card",
	})

	err := consumer.Handle(context.Background(), messaging.Message{Value: payload})
	assert.NotNil(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, 1, provider.intentCalls)

	// The payment row exists but carries no provider ref, so the
	// redelivery must run the intent leg again instead of short-circuiting.
	provider.intentErr = nil
	assert.Nil(t, consumer.Handle(context.Background(), messaging.Message{Value: payload}))
	assert.Equal(t, 2, provider.intentCalls)

	payment := repo.byOrder[orderID]
	assert.NotNil(t, payment.ProviderCode)
	assert.Equal(t, "pi_"+orderID.String(), *payment.ProviderCode)
}

func TestRefundConsumer_ReleasesPayment(t *testing.T) {
	payment := pendingPayment()
	payment.Status = models.PaymentStatusPaid
	repo := newMockPaymentRepo(payment)
	pub := &mockPublisher{}
	logger, _ := zap.NewDevelopment()
	consumer := services.NewRefundConsumer(newTestPaymentService(repo, pub, nil), "payment-service", logger)

	payload, _ := json.Marshal(events.RefundCompletedEvent{
		RefundRequestID: uuid.NewString(),
		OrderID:         payment.OrderID.String(),
	})
	err := consumer.Handle(context.Background(), messaging.Message{Value: payload})

	assert.Nil(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
}
