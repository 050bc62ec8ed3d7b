package models

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
)

// PaymentStatus enumerates the payment lifecycle. The machine is one-way:
// Pending -> Paid | Failed, and Paid -> Refunded.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "Pending"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusFailed   PaymentStatus = "Failed"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

type Payment struct {
	ID           uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID      uuid.UUID     `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	UserID       uuid.UUID     `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount       int           `gorm:"not null" json:"amount"` // in cents; immutable after creation
	Method       string        `gorm:"type:varchar(32);not null" json:"method"`
	Status       PaymentStatus `gorm:"type:varchar(20);not null;default:'Pending'" json:"status"`
	ProviderCode *string       `gorm:"type:varchar(128);index" json:"provider_code,omitempty"`
	Fee          int           `gorm:"not null;default:0" json:"fee"`
	ProcessedAt  *time.Time    `json:"processed_at,omitempty"`
	Version      int           `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// MarkSuccessful captures the payment. Requiring Pending here is the sole
// concurrency guard against double-processing a provider callback.
func (p *Payment) MarkSuccessful(providerCode string, fee int) error {
	if p.Status != PaymentStatusPending {
		return apperrors.StateConflict("payment %s is %s, not Pending", p.ID, p.Status)
	}
	now := time.Now().UTC()
	p.Status = PaymentStatusPaid
	p.Fee = fee
	p.ProcessedAt = &now
	if providerCode != "" {
		p.ProviderCode = &providerCode
	}
	return nil
}

func (p *Payment) MarkFailed(providerCode string) error {
	if p.Status != PaymentStatusPending {
		return apperrors.StateConflict("payment %s is %s, not Pending", p.ID, p.Status)
	}
	now := time.Now().UTC()
	p.Status = PaymentStatusFailed
	p.ProcessedAt = &now
	if providerCode != "" {
		p.ProviderCode = &providerCode
	}
	return nil
}

// Refund releases a captured payment; legal only from Paid.
func (p *Payment) Refund() error {
	if p.Status != PaymentStatusPaid {
		return apperrors.StateConflict("payment %s is %s, not Paid", p.ID, p.Status)
	}
	p.Status = PaymentStatusRefunded
	return nil
}
