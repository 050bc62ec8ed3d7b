package models_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/payment-service/models"
)

func TestMarkSuccessful_RequiresPending(t *testing.T) {
	p := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusPending, Amount: 2000}

	assert.Nil(t, p.MarkSuccessful("pi_123", 58))
	assert.Equal(t, models.PaymentStatusPaid, p.Status)
	assert.Equal(t, 58, p.Fee)
	assert.NotNil(t, p.ProcessedAt)
	assert.Equal(t, "pi_123", *p.ProviderCode)

	// Second capture attempt is a conflict, not a state change.
	err := p.MarkSuccessful("pi_123", 58)
	assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
	assert.Equal(t, models.PaymentStatusPaid, p.Status)
}

func TestMarkFailed_RequiresPending(t *testing.T) {
	p := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusPaid}

	err := p.MarkFailed("pi_123")

	assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
	assert.Equal(t, models.PaymentStatusPaid, p.Status)
}

func TestRefund_OnlyFromPaid(t *testing.T) {
	paid := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusPaid}
	assert.Nil(t, paid.Refund())
	assert.Equal(t, models.PaymentStatusRefunded, paid.Status)

	for _, status := range []models.PaymentStatus{
		models.PaymentStatusPending, models.PaymentStatusFailed, models.PaymentStatusRefunded,
	} {
		p := &models.Payment{ID: uuid.New(), Status: status}
		err := p.Refund()
		assert.NotNil(t, err, "refund from %s should be rejected", status)
		assert.Equal(t, status, p.Status)
	}
}
