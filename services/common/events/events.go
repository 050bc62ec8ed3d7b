// Package events holds the cross-service saga event contracts. Services
// never write to each other's storage; these payloads are the only way
// state crosses a service boundary.
package events

import "time"

// Topic names shared by producers and consumers.
const (
	TopicOrderCreatedOrUpdated = "orders.created-or-updated"
	TopicOrderStatusChanged    = "orders.status-changed"
	TopicPaymentStatusChanged  = "payments.status-changed"
	TopicShopPaymentRequest    = "shops.payment-request"
	TopicStockRejected         = "inventory.stock-rejected"
	TopicRefundCompleted       = "orders.refund-completed"
	TopicPaymentRequest        = "payments.requested"
)

// OrderEventItem is a line item as carried on the wire.
type OrderEventItem struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
}

// OrderCreatedOrUpdatedEvent is published by the order service on checkout
// and on every later lifecycle change, carrying the full item list so the
// inventory ledger can apply stock deltas without a remote read. Non-zero
// rate fields additionally trigger rating updates on the shop/account
// aggregates, a side channel outside the saga proper.
type OrderCreatedOrUpdatedEvent struct {
	OrderCode   string           `json:"order_code"`
	UserID      string           `json:"user_id"`
	Message     string           `json:"message,omitempty"`
	OrderStatus string           `json:"order_status"`
	OrderItems  []OrderEventItem `json:"order_items"`
	ShopRate    int              `json:"shop_rate,omitempty"`
	UserRate    int              `json:"user_rate,omitempty"`
}

// OrderStatusChanged is the single source of truth for order state.
// Consumers must never infer order state from payment state alone.
type OrderStatusChanged struct {
	OrderID        string    `json:"order_id"`
	OrderCode      string    `json:"order_code"`
	AccountID      string    `json:"account_id"`
	ShopID         string    `json:"shop_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedAt      time.Time `json:"changed_at"`
	ChangedBy      string    `json:"changed_by"`
}

// PaymentStatusChanged is published by the payment service; the order
// service is the only legitimate consumer that advances order status in
// response.
type PaymentStatusChanged struct {
	PaymentID    string    `json:"payment_id"`
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	NewStatus    string    `json:"new_status"`
	Amount       int       `json:"amount"`
	ProviderCode *string   `json:"provider_code,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PaymentRequest asks the payment service to open a Pending payment for a
// freshly checked-out order.
type PaymentRequest struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Amount  int    `json:"amount"`
	Method  string `json:"method"`
}

// ShopPaymentRequest asks the shop service to settle a wallet movement.
type ShopPaymentRequest struct {
	OrderID              string `json:"order_id"`
	ShopID               string `json:"shop_id"`
	Amount               int    `json:"amount"`
	Fee                  int    `json:"fee"`
	TransactionType      string `json:"transaction_type"`
	TransactionReference string `json:"transaction_reference"`
	Description          string `json:"description"`
}

// StockRejectedEvent reports that an order's stock adjustment failed the
// conditional decrement guard. Insufficient stock is a business rejection
// of the order, not a transient fault: the order service consumes this and
// cancels the order.
type StockRejectedEvent struct {
	OrderCode  string    `json:"order_code"`
	ProductID  string    `json:"product_id"`
	Requested  int       `json:"requested"`
	Available  int       `json:"available"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RefundCompletedEvent fans out the compensations of a completed refund:
// stock restore (product service), wallet debit (shop service), payment
// refund (payment service).
type RefundCompletedEvent struct {
	RefundRequestID string           `json:"refund_request_id"`
	OrderID         string           `json:"order_id"`
	OrderCode       string           `json:"order_code"`
	ShopID          string           `json:"shop_id"`
	Amount          int              `json:"amount"`
	Items           []OrderEventItem `json:"items"`
	CompletedAt     time.Time        `json:"completed_at"`
}
