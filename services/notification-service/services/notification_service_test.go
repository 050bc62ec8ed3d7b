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
	"github.com/shoplet/marketplace-backend/services/notification-service/models"
	"github.com/shoplet/marketplace-backend/services/notification-service/services"
)

type mockNotificationRepo struct {
	byID    map[string]*models.Notification
	saveErr error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{byID: make(map[string]*models.Notification)}
}

func (m *mockNotificationRepo) Save(_ context.Context, n *models.Notification) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, exists := m.byID[n.ID]; exists {
		return nil
	}
	m.byID[n.ID] = n
	return nil
}

func (m *mockNotificationRepo) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error) {
	var out []models.Notification
	for _, n := range m.byID {
		if n.UserID == filter.UserID {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	n, ok := m.byID[id]
	if !ok || n.UserID != userID {
		return apperrors.NotFound("notification %s not found", id)
	}
	n.Read = true
	return nil
}

func newTestNotificationService(repo *mockNotificationRepo) services.NotificationService {
	logger, _ := zap.NewDevelopment()
	return services.NewNotificationService(repo, logger)
}

func TestRecordOrderStatus_SavesDocumentForBuyer(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := newTestNotificationService(repo)
	userID := uuid.NewString()

	err := svc.RecordOrderStatus(context.Background(), events.OrderStatusChanged{
		OrderCode: "ORD-1",
		AccountID: userID,
		NewStatus: "Processing",
	})

	assert.Nil(t, err)
	n, ok := repo.byID["order_status:ORD-1:Processing"]
	assert.True(t, ok)
	assert.Equal(t, userID, n.UserID)
	assert.Equal(t, models.KindOrderStatus, n.Kind)
	assert.False(t, n.Read)
}

func TestRecordOrderStatus_ReplayKeepsOneDocument(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := newTestNotificationService(repo)
	evt := events.OrderStatusChanged{OrderCode: "ORD-1", AccountID: uuid.NewString(), NewStatus: "Processing"}

	assert.Nil(t, svc.RecordOrderStatus(context.Background(), evt))
	assert.Nil(t, svc.RecordOrderStatus(context.Background(), evt))

	assert.Len(t, repo.byID, 1)
}

func TestRecordOrderStatus_MissingAccountRejected(t *testing.T) {
	svc := newTestNotificationService(newMockNotificationRepo())

	err := svc.RecordOrderStatus(context.Background(), events.OrderStatusChanged{OrderCode: "ORD-1"})

	assert.NotNil(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestRecordPaymentStatus_SavesDocument(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := newTestNotificationService(repo)
	orderID := uuid.NewString()

	err := svc.RecordPaymentStatus(context.Background(), events.PaymentStatusChanged{
		OrderID:   orderID,
		UserID:    uuid.NewString(),
		NewStatus: "Paid",
		Amount:    2000,
	})

	assert.Nil(t, err)
	_, ok := repo.byID["payment_status:"+orderID+":Paid"]
	assert.True(t, ok)
}

func TestRecordOrderActivity_FallsBackToGeneratedMessage(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := newTestNotificationService(repo)

	err := svc.RecordOrderActivity(context.Background(), events.OrderCreatedOrUpdatedEvent{
		OrderCode:   "ORD-1",
		UserID:      uuid.NewString(),
		OrderStatus: "Waiting",
	})

	assert.Nil(t, err)
	n := repo.byID["order_activity:ORD-1:Waiting"]
	assert.NotNil(t, n)
	assert.Equal(t, "Order ORD-1 update: Waiting.", n.Message)
}

func TestSaveFailureSurfacesRetryable(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.saveErr = assert.AnError
	svc := newTestNotificationService(repo)

	err := svc.RecordOrderStatus(context.Background(), events.OrderStatusChanged{
		OrderCode: "ORD-1",
		AccountID: uuid.NewString(),
		NewStatus: "Processing",
	})

	assert.NotNil(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestMarkRead_ScopedToOwner(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := newTestNotificationService(repo)
	userID := uuid.NewString()
	assert.Nil(t, svc.RecordOrderStatus(context.Background(), events.OrderStatusChanged{
		OrderCode: "ORD-1", AccountID: userID, NewStatus: "Processing",
	}))

	assert.NotNil(t, svc.MarkRead(context.Background(), "order_status:ORD-1:Processing", uuid.NewString()))
	assert.Nil(t, svc.MarkRead(context.Background(), "order_status:ORD-1:Processing", userID))
	assert.True(t, repo.byID["order_status:ORD-1:Processing"].Read)
}

func TestOrderStatusConsumer_RoutesToService(t *testing.T) {
	repo := newMockNotificationRepo()
	consumer := services.NewOrderStatusConsumer(newTestNotificationService(repo), "notification-service")

	payload, _ := json.Marshal(events.OrderStatusChanged{
		OrderCode: "ORD-1",
		AccountID: uuid.NewString(),
		NewStatus: "Shipped",
	})
	err := consumer.Handle(context.Background(), messaging.Message{Value: payload})

	assert.Nil(t, err)
	assert.Len(t, repo.byID, 1)
}
