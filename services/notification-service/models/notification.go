package models

import "time"

// Notification kinds.
const (
	KindOrderStatus   = "order_status"
	KindPaymentStatus = "payment_status"
	KindOrderActivity = "order_activity"
)

// Notification is a document-store record of a user-facing message. The
// ID is deterministic per (kind, reference, status) so redelivered events
// collapse onto the same document instead of duplicating.
type Notification struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	OrderCode string    `bson:"order_code,omitempty" json:"order_code,omitempty"`
	Kind      string    `bson:"kind" json:"kind"`
	Title     string    `bson:"title" json:"title"`
	Message   string    `bson:"message" json:"message"`
	Read      bool      `bson:"read" json:"read"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type NotificationFilter struct {
	UserID   string
	Kind     string
	Unread   bool
	Page     int
	PageSize int
}
