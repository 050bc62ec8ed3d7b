package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/payment-service/models"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByProviderCode(ctx context.Context, code string) (*models.Payment, error)
	UpdateWithVersion(ctx context.Context, payment *models.Payment) error
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("payment %s not found", id)
		}
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("payment for order %s not found", orderID)
		}
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindByProviderCode(ctx context.Context, code string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "provider_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("payment with provider code %s not found", code)
		}
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) UpdateWithVersion(ctx context.Context, payment *models.Payment) error {
	// Stamped here so the in-memory aggregate matches the row and emitted
	// events carry the actual transition time.
	payment.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Updates(map[string]interface{}{
			"status":        payment.Status,
			"provider_code": payment.ProviderCode,
			"fee":           payment.Fee,
			"processed_at":  payment.ProcessedAt,
			"updated_at":    payment.UpdatedAt,
			"version":       payment.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.VersionConflict("payment %s version %d is stale", payment.ID, payment.Version)
	}
	payment.Version++
	return nil
}
