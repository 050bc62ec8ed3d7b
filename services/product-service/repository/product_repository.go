package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/product-service/models"
)

// ProductRepository defines the interface for catalog and stock access.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (int, error)
	// ApplyAdjustment applies all deltas and the ledger row in a single
	// transaction. Redelivery (existing ledger row) is a no-op. A failed
	// conditional decrement rolls the whole adjustment back and surfaces
	// as an insufficient-stock error carrying the offending product.
	ApplyAdjustment(ctx context.Context, reference, kind string, deltas []models.StockDelta) error
	WasApplied(ctx context.Context, reference, kind string) (bool, error)
}

// InsufficientStockError reports the item that failed the decrement guard.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Unwrap lets callers classify it through the shared taxonomy.
func (e *InsufficientStockError) Unwrap() error {
	return apperrors.InsufficientStock("insufficient stock")
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Variants").
		First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("product %s not found", id)
		}
		return nil, err
	}
	return &product, nil
}

func (r *GormProductRepository) GetStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (int, error) {
	var stock int
	if variantID != nil {
		err := r.db.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ? AND product_id = ?", variantID, productID).
			Pluck("stock", &stock).Error
		return stock, err
	}
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Pluck("stock", &stock).Error
	return stock, err
}

func (r *GormProductRepository) ApplyAdjustment(ctx context.Context, reference, kind string, deltas []models.StockDelta) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		adj := models.StockAdjustment{ID: uuid.New(), Reference: reference, Kind: kind}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&adj)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already applied; redelivery is a no-op.
			return nil
		}

		for _, d := range deltas {
			if err := applyDelta(tx, d); err != nil {
				return err
			}
		}
		return nil
	})
}

// applyDelta is a single atomic conditional update, never a
// read-modify-write pair.
func applyDelta(tx *gorm.DB, d models.StockDelta) error {
	if d.Quantity == 0 {
		return nil
	}

	if d.VariantID != nil {
		if err := applyVariantDelta(tx, d); err != nil {
			return err
		}
	}

	var res *gorm.DB
	if d.Quantity < 0 {
		need := -d.Quantity
		res = tx.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", d.ProductID, need).
			UpdateColumn("stock", gorm.Expr("stock - ?", need))
	} else {
		res = tx.Model(&models.Product{}).
			Where("id = ?", d.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", d.Quantity))
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if d.Quantity > 0 {
			return apperrors.NotFound("product %s not found", d.ProductID)
		}
		var available int
		tx.Model(&models.Product{}).Where("id = ?", d.ProductID).Pluck("stock", &available)
		return &InsufficientStockError{
			ProductID: d.ProductID,
			Requested: -d.Quantity,
			Available: available,
		}
	}
	return nil
}

func applyVariantDelta(tx *gorm.DB, d models.StockDelta) error {
	var res *gorm.DB
	if d.Quantity < 0 {
		need := -d.Quantity
		res = tx.Model(&models.ProductVariant{}).
			Where("id = ? AND stock >= ?", d.VariantID, need).
			UpdateColumn("stock", gorm.Expr("stock - ?", need))
	} else {
		res = tx.Model(&models.ProductVariant{}).
			Where("id = ?", d.VariantID).
			UpdateColumn("stock", gorm.Expr("stock + ?", d.Quantity))
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if d.Quantity > 0 {
			return apperrors.NotFound("variant %s not found", d.VariantID)
		}
		var available int
		tx.Model(&models.ProductVariant{}).Where("id = ?", d.VariantID).Pluck("stock", &available)
		return &InsufficientStockError{
			ProductID: d.ProductID,
			Requested: -d.Quantity,
			Available: available,
		}
	}
	return nil
}

func (r *GormProductRepository) WasApplied(ctx context.Context, reference, kind string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockAdjustment{}).
		Where("reference = ? AND kind = ?", reference, kind).
		Count(&count).Error
	return count > 0, err
}
