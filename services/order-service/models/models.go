package models

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/common/events"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusWaiting    OrderStatus = "Waiting"
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusPacked     OrderStatus = "Packed"
	OrderStatusOnDelivery OrderStatus = "OnDelivery"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusCancelled  OrderStatus = "Cancelled"
	OrderStatusReturning  OrderStatus = "Returning"
	OrderStatusRefunded   OrderStatus = "Refunded"
)

// OrderPaymentStatus mirrors the payment service's view on the order row.
type OrderPaymentStatus string

const (
	OrderPaymentPending  OrderPaymentStatus = "Pending"
	OrderPaymentPaid     OrderPaymentStatus = "Paid"
	OrderPaymentFailed   OrderPaymentStatus = "Failed"
	OrderPaymentRefunded OrderPaymentStatus = "Refunded"
)

type Order struct {
	ID            uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderCode     string             `gorm:"uniqueIndex;not null" json:"order_code"`
	UserID        uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	ShopID        uuid.UUID          `gorm:"type:uuid;not null;index" json:"shop_id"`
	TotalPrice    int                `gorm:"not null" json:"total_price"`
	Status        OrderStatus        `gorm:"type:varchar(20);not null;default:'Waiting'" json:"status"`
	PaymentStatus OrderPaymentStatus `gorm:"type:varchar(20);not null;default:'Pending'" json:"payment_status"`
	Version       int                `gorm:"not null;default:0" json:"-"`
	CreatedBy     string             `gorm:"type:varchar(64)" json:"created_by"`
	ModifiedBy    string             `gorm:"type:varchar(64)" json:"modified_by"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	ModifiedAt    time.Time          `gorm:"autoUpdateTime" json:"modified_at"`
	Items         []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

type OrderItem struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID       uuid.UUID  `gorm:"type:uuid;not null" json:"product_id"`
	VariantID       *uuid.UUID `gorm:"type:uuid" json:"variant_id,omitempty"`
	Quantity        int        `gorm:"not null" json:"quantity"`
	UnitPrice       int        `gorm:"not null" json:"unit_price"`
	Discount        int        `gorm:"not null;default:0" json:"discount"`
	RefundRequestID *uuid.UUID `gorm:"type:uuid;index" json:"refund_request_id,omitempty"`
}

// LineTotal is the paid price for the line.
func (i OrderItem) LineTotal() int {
	return i.Quantity * (i.UnitPrice - i.Discount)
}

// ComputeTotal sums the line totals; the stored TotalPrice must equal it.
func (o *Order) ComputeTotal() int {
	total := 0
	for _, it := range o.Items {
		total += it.LineTotal()
	}
	return total
}

// transition applies a guarded state change: it verifies the current state
// is a legal predecessor, applies the new state, stamps the modifier, and
// returns the event to publish. Illegal transitions fail with a
// state-conflict error.
func (o *Order) transition(to OrderStatus, changedBy string, from ...OrderStatus) (*events.OrderStatusChanged, error) {
	legal := false
	for _, s := range from {
		if o.Status == s {
			legal = true
			break
		}
	}
	if !legal {
		return nil, apperrors.StateConflict("order %s cannot move %s -> %s", o.OrderCode, o.Status, to)
	}

	previous := o.Status
	now := time.Now().UTC()
	o.Status = to
	o.ModifiedBy = changedBy
	o.ModifiedAt = now

	return &events.OrderStatusChanged{
		OrderID:        o.ID.String(),
		OrderCode:      o.OrderCode,
		AccountID:      o.UserID.String(),
		ShopID:         o.ShopID.String(),
		PreviousStatus: string(previous),
		NewStatus:      string(to),
		ChangedAt:      now,
		ChangedBy:      changedBy,
	}, nil
}

// MarkPending advances the order once its payment is captured.
func (o *Order) MarkPending(changedBy string) (*events.OrderStatusChanged, error) {
	return o.transition(OrderStatusPending, changedBy, OrderStatusWaiting)
}

// Confirm is the shop accepting the order for processing.
func (o *Order) Confirm(changedBy string) (*events.OrderStatusChanged, error) {
	return o.transition(OrderStatusProcessing, changedBy, OrderStatusPending)
}

func (o *Order) Pack(changedBy string) (*events.OrderStatusChanged, error) {
	return o.transition(OrderStatusPacked, changedBy, OrderStatusProcessing)
}

func (o *Order) Ship(changedBy string) (*events.OrderStatusChanged, error) {
	return o.transition(OrderStatusOnDelivery, changedBy, OrderStatusPacked)
}

// MarkDelivered is driven by the delivery provider webhook.
func (o *Order) MarkDelivered(changedBy string) (*events.OrderStatusChanged, error) {
	return o.transition(OrderStatusDelivered, changedBy, OrderStatusOnDelivery)
}

func (o *Order) Complete(changedBy string) (*events.OrderStatusChanged, error) {
	return o.transition(OrderStatusCompleted, changedBy, OrderStatusDelivered)
}

// Cancel is guarded at the moment of transition: an order that has moved
// past Processing can no longer be cancelled.
func (o *Order) Cancel(changedBy string) (*events.OrderStatusChanged, error) {
	return o.transition(OrderStatusCancelled, changedBy,
		OrderStatusWaiting, OrderStatusPending, OrderStatusProcessing)
}

func (o *Order) BeginReturn(changedBy string) (*events.OrderStatusChanged, error) {
	return o.transition(OrderStatusReturning, changedBy,
		OrderStatusDelivered, OrderStatusCompleted)
}

func (o *Order) MarkRefunded(changedBy string) (*events.OrderStatusChanged, error) {
	return o.transition(OrderStatusRefunded, changedBy, OrderStatusReturning)
}

// ToEventItems converts the order's lines to their wire shape.
func (o *Order) ToEventItems() []events.OrderEventItem {
	out := make([]events.OrderEventItem, 0, len(o.Items))
	for _, it := range o.Items {
		evt := events.OrderEventItem{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
		}
		if it.VariantID != nil {
			v := it.VariantID.String()
			evt.VariantID = &v
		}
		out = append(out, evt)
	}
	return out
}
