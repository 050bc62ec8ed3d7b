package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/shop-service/models"
)

type ShopRepository interface {
	Create(ctx context.Context, shop *models.Shop) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	// ApplyRating records the order's rating and folds it into the shop
	// aggregate. A rating already recorded for the order code is a no-op.
	ApplyRating(ctx context.Context, rating *models.ShopRating) error
}

type GormShopRepository struct {
	db *gorm.DB
}

func NewGormShopRepository(db *gorm.DB) ShopRepository {
	return &GormShopRepository{db: db}
}

func (r *GormShopRepository) Create(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

func (r *GormShopRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("shop %s not found", id)
		}
		return nil, err
	}
	return &shop, nil
}

func (r *GormShopRepository) ApplyRating(ctx context.Context, rating *models.ShopRating) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rating)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Rating for this order already counted.
			return nil
		}
		return tx.Model(&models.Shop{}).
			Where("id = ?", rating.ShopID).
			Updates(map[string]interface{}{
				"rating_total": gorm.Expr("rating_total + ?", rating.Rate),
				"rating_count": gorm.Expr("rating_count + 1"),
			}).Error
	})
}
