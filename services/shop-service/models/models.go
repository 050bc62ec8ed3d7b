package models

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
)

type Shop struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID     uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	RatingTotal int       `gorm:"not null;default:0" json:"-"`
	RatingCount int       `gorm:"not null;default:0" json:"rating_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AverageRating is the displayed shop score.
func (s *Shop) AverageRating() float64 {
	if s.RatingCount == 0 {
		return 0
	}
	return float64(s.RatingTotal) / float64(s.RatingCount)
}

// ShopRating records one order's rating contribution. The unique order
// code keeps redelivered rating events from double-counting.
type ShopRating struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID    uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderCode string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Rate      int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Wallet owner types.
const (
	WalletOwnerShop     = "Shop"
	WalletOwnerPlatform = "Platform"
)

type Wallet struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_wallet_owner" json:"owner_id"`
	OwnerType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_wallet_owner" json:"owner_type"`
	Balance   int       `gorm:"not null;default:0" json:"balance"`
	Version   int       `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Wallet transaction types and statuses.
const (
	TransactionTypeCommission = "Commission"
	TransactionTypeRefund     = "Refund"

	TransactionStatusPending = "Pending"
	TransactionStatusSuccess = "Success"
	TransactionStatusFailed  = "Failed"
)

// Settlement purposes; together with the reference they form the
// idempotency key of a wallet movement.
const (
	PurposeCredit = "credit"
	PurposeDebit  = "debit"
	PurposeFee    = "fee"
)

// WalletTransaction is a typed, signed wallet movement. At most one row
// exists per (reference, purpose); once its status is Success the row is
// immutable and redelivery of the originating event is a no-op.
type WalletTransaction struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	WalletID    uuid.UUID `gorm:"type:uuid;index" json:"wallet_id"`
	Type        string    `gorm:"type:varchar(20);not null" json:"type"`
	Status      string    `gorm:"type:varchar(20);not null;default:'Pending'" json:"status"`
	Amount      int       `gorm:"not null" json:"amount"`
	Reference   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_wallet_tx_ref_purpose" json:"reference"`
	Purpose     string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_wallet_tx_ref_purpose" json:"purpose"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MarkSuccessful finalizes the movement; a Success row never changes
// again.
func (t *WalletTransaction) MarkSuccessful(walletID uuid.UUID) error {
	if t.Status == TransactionStatusSuccess {
		return apperrors.StateConflict("wallet transaction %s/%s already settled", t.Reference, t.Purpose)
	}
	t.WalletID = walletID
	t.Status = TransactionStatusSuccess
	return nil
}
