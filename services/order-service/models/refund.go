package models

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
)

// RefundStatus enumerates the refund-request lifecycle states.
type RefundStatus string

const (
	RefundStatusCreated    RefundStatus = "Created"
	RefundStatusConfirmed  RefundStatus = "Confirmed"
	RefundStatusPacked     RefundStatus = "Packed"
	RefundStatusOnDelivery RefundStatus = "OnDelivery"
	RefundStatusDelivered  RefundStatus = "Delivered"
	RefundStatusCompleted  RefundStatus = "Completed"
	RefundStatusRefunded   RefundStatus = "Refunded"
	RefundStatusRejected   RefundStatus = "Rejected"
)

// RefundRequest is a sub-saga scoped to a subset of an order's items.
type RefundRequest struct {
	ID           uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID      uuid.UUID    `gorm:"type:uuid;not null;index" json:"order_id"`
	RequestedBy  uuid.UUID    `gorm:"type:uuid;not null" json:"requested_by"`
	Status       RefundStatus `gorm:"type:varchar(20);not null;default:'Created'" json:"status"`
	RefundAmount int          `gorm:"not null" json:"refund_amount"`
	Version      int          `gorm:"not null;default:0" json:"-"`
	ProcessedBy  *string      `gorm:"type:varchar(64)" json:"processed_by,omitempty"`
	ProcessedAt  *time.Time   `json:"processed_at,omitempty"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	ModifiedAt   time.Time    `gorm:"autoUpdateTime" json:"modified_at"`
	Items        []RefundItem `gorm:"foreignKey:RefundRequestID;constraint:OnDelete:CASCADE" json:"items"`
}

type RefundItem struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RefundRequestID uuid.UUID `gorm:"type:uuid;not null;index" json:"refund_request_id"`
	OrderItemID     uuid.UUID `gorm:"type:uuid;not null;index" json:"order_item_id"`
	Reason          string    `gorm:"type:varchar(255);not null" json:"reason"`
	EvidenceURL     string    `gorm:"type:varchar(1024)" json:"evidence_url,omitempty"`
	UnitPrice       int       `gorm:"not null" json:"unit_price"`
	Quantity        int       `gorm:"not null" json:"quantity"`
}

// refundSequence is the forward path; Rejected branches off any state
// before Completed.
var refundSequence = []RefundStatus{
	RefundStatusCreated,
	RefundStatusConfirmed,
	RefundStatusPacked,
	RefundStatusOnDelivery,
	RefundStatusDelivered,
	RefundStatusCompleted,
	RefundStatusRefunded,
}

func refundIndex(s RefundStatus) int {
	for i, st := range refundSequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Advance moves the request to the next status in the forward path. Only
// direct successors are legal; skipping states is a conflict.
func (r *RefundRequest) Advance(to RefundStatus, actor string) error {
	cur := refundIndex(r.Status)
	next := refundIndex(to)
	if cur < 0 || next != cur+1 {
		return apperrors.StateConflict("refund %s cannot move %s -> %s", r.ID, r.Status, to)
	}
	r.Status = to
	now := time.Now().UTC()
	r.ModifiedAt = now
	if to == RefundStatusCompleted || to == RefundStatusRefunded {
		r.ProcessedBy = &actor
		r.ProcessedAt = &now
	}
	return nil
}

// Reject terminates the request; legal from any state before Completed.
func (r *RefundRequest) Reject(actor string) error {
	idx := refundIndex(r.Status)
	if idx < 0 || idx >= refundIndex(RefundStatusCompleted) {
		return apperrors.StateConflict("refund %s cannot be rejected from %s", r.ID, r.Status)
	}
	now := time.Now().UTC()
	r.Status = RefundStatusRejected
	r.ProcessedBy = &actor
	r.ProcessedAt = &now
	r.ModifiedAt = now
	return nil
}

// ComputeAmount sums the refunded line totals.
func (r *RefundRequest) ComputeAmount() int {
	total := 0
	for _, it := range r.Items {
		total += it.Quantity * it.UnitPrice
	}
	return total
}
