package auditlog

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogOrder is one entry of an order's event trail.
type AuditLogOrder struct {
	ID          int64     `json:"id"`
	OrderID     uuid.UUID `json:"orderId"`
	MessageID   uuid.UUID `json:"messageId"`
	EventType   string    `json:"eventType"`
	OrderStatus string    `json:"orderStatus"`
	CreatedAt   time.Time `json:"createdAt"`
}
