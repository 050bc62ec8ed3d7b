package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/shop-service/models"
)

// WalletRepository owns wallet balances and the settlement ledger.
type WalletRepository interface {
	FindWallet(ctx context.Context, ownerID uuid.UUID, ownerType string) (*models.Wallet, error)
	FindTransaction(ctx context.Context, reference, purpose string) (*models.WalletTransaction, error)
	// ApplySettlement moves delta onto the owner's wallet and finalizes
	// the transaction row as Success, all in one database transaction.
	// The wallet row is created on first settlement. A stale wallet
	// version rolls everything back with a version conflict; the row is
	// then recorded Failed by the caller and the bus redelivers.
	ApplySettlement(ctx context.Context, ownerID uuid.UUID, ownerType string, delta int, tx *models.WalletTransaction) error
	SaveTransaction(ctx context.Context, tx *models.WalletTransaction) error
}

type GormWalletRepository struct {
	db *gorm.DB
}

func NewGormWalletRepository(db *gorm.DB) WalletRepository {
	return &GormWalletRepository{db: db}
}

func (r *GormWalletRepository) FindWallet(ctx context.Context, ownerID uuid.UUID, ownerType string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		First(&wallet, "owner_id = ? AND owner_type = ?", ownerID, ownerType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("wallet for %s %s not found", ownerType, ownerID)
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *GormWalletRepository) FindTransaction(ctx context.Context, reference, purpose string) (*models.WalletTransaction, error) {
	var tx models.WalletTransaction
	err := r.db.WithContext(ctx).
		First(&tx, "reference = ? AND purpose = ?", reference, purpose).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (r *GormWalletRepository) ApplySettlement(ctx context.Context, ownerID uuid.UUID, ownerType string, delta int, txRow *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet := models.Wallet{ID: uuid.New(), OwnerID: ownerID, OwnerType: ownerType}
		if err := tx.
			Where("owner_id = ? AND owner_type = ?", ownerID, ownerType).
			FirstOrCreate(&wallet).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Wallet{}).
			Where("id = ? AND version = ?", wallet.ID, wallet.Version).
			Updates(map[string]interface{}{
				"balance": gorm.Expr("balance + ?", delta),
				"version": wallet.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.VersionConflict("wallet %s was modified concurrently", wallet.ID)
		}

		if err := txRow.MarkSuccessful(wallet.ID); err != nil {
			return err
		}
		return tx.Save(txRow).Error
	})
}

func (r *GormWalletRepository) SaveTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Save(tx).Error
}
