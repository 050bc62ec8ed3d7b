package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/order-service/models"
)

// RefundRepository defines the interface for refund-request data access.
type RefundRepository interface {
	Create(ctx context.Context, req *models.RefundRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.RefundRequest, error)
	UpdateWithVersion(ctx context.Context, req *models.RefundRequest) error
	// ActiveItemIDs returns the order-item ids covered by any non-rejected
	// refund request of the order — the disjointness set.
	ActiveItemIDs(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]bool, error)
}

type GormRefundRepository struct {
	db *gorm.DB
}

func NewGormRefundRepository(db *gorm.DB) RefundRepository {
	return &GormRefundRepository{db: db}
}

func (r *GormRefundRepository) Create(ctx context.Context, req *models.RefundRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(req).Error
	})
}

func (r *GormRefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	var req models.RefundRequest
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("refund request %s not found", id)
		}
		return nil, err
	}
	return &req, nil
}

func (r *GormRefundRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.RefundRequest, error) {
	var reqs []models.RefundRequest
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *GormRefundRepository) UpdateWithVersion(ctx context.Context, req *models.RefundRequest) error {
	res := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("id = ? AND version = ?", req.ID, req.Version).
		Updates(map[string]interface{}{
			"status":       req.Status,
			"processed_by": req.ProcessedBy,
			"processed_at": req.ProcessedAt,
			"modified_at":  req.ModifiedAt,
			"version":      req.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.VersionConflict("refund %s version %d is stale", req.ID, req.Version)
	}
	req.Version++
	return nil
}

func (r *GormRefundRepository) ActiveItemIDs(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]bool, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.RefundItem{}).
		Joins("JOIN refund_requests ON refund_requests.id = refund_items.refund_request_id").
		Where("refund_requests.order_id = ? AND refund_requests.status <> ?", orderID, models.RefundStatusRejected).
		Pluck("refund_items.order_item_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
