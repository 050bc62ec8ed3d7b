package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ShopID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"shop_id"`
	Name      string           `gorm:"type:varchar(255);not null" json:"name"`
	Price     int              `gorm:"not null" json:"price"`
	Stock     int              `gorm:"not null;default:0" json:"stock"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	Variants  []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
}

// ProductVariant carries its own stock level, adjusted independently of
// the parent product's aggregate stock.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Stock     int       `gorm:"not null;default:0" json:"stock"`
}

// StockAdjustment is the applied-adjustments ledger: one row per
// (reference, kind) pair marks that the adjustment was applied. The unique
// index is the idempotency boundary for event redelivery.
type StockAdjustment struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Reference string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_stock_adj_ref_kind"`
	Kind      string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_stock_adj_ref_kind"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// Adjustment kinds. Order decrements are recorded under the target order
// status that triggered them; restores under Cancelled or Refund.
const (
	AdjustmentKindWaiting   = "Waiting"
	AdjustmentKindPending   = "Pending"
	AdjustmentKindCancelled = "Cancelled"
	AdjustmentKindRefund    = "Refund"
)

// StockDelta is one signed stock movement; negative quantities decrement.
type StockDelta struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}
