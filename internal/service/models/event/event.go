package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is the stable discriminator stored next to a serialized event.
type Type string

const (
	TypeOrderCreated     Type = "order.created"
	TypeOrderItemAdded   Type = "order.item_added"
	TypeOrderItemUpdated Type = "order.item_updated"
	TypeOrderItemRemoved Type = "order.item_removed"
	TypePaymentSet       Type = "order.payment_set"
	TypePaymentCompleted Type = "order.payment_completed"
	TypePaymentFailed    Type = "order.payment_failed"
	TypeDeliveryCreated  Type = "order.delivery_created"
	TypeDeliveryAssigned Type = "order.delivery_assigned"
	TypeOrderDelivered   Type = "order.delivered"
)

func (t Type) String() string {
	return string(t)
}

var (
	ErrUnknownType    = errors.New("unknown event type")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Event is a fact raised by the order aggregate.
// The set of implementations is closed to this package.
type Event interface {
	Type() Type
	AggregateID() uuid.UUID
	OccurredAt() time.Time
	isEvent()
}

// Base carries the fields shared by every event.
type Base struct {
	OrderID uuid.UUID `json:"orderId"`
	At      time.Time `json:"occurredAt"`
}

func (b Base) AggregateID() uuid.UUID { return b.OrderID }
func (b Base) OccurredAt() time.Time  { return b.At }
func (Base) isEvent()                 {}

type OrderCreated struct {
	Base
	CustomerID   uuid.UUID `json:"customerId"`
	RestaurantID uuid.UUID `json:"restaurantId"`
}

type OrderItemAdded struct {
	Base
	OrderItemID uuid.UUID       `json:"orderItemId"`
	MenuItemID  uuid.UUID       `json:"menuItemId"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type OrderItemUpdated struct {
	Base
	OrderItemID uuid.UUID       `json:"orderItemId"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type OrderItemRemoved struct {
	Base
	OrderItemID uuid.UUID `json:"orderItemId"`
}

type PaymentSet struct {
	Base
	PaymentID     uuid.UUID       `json:"paymentId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	TransactionID string          `json:"transactionId"`
}

type PaymentCompleted struct {
	Base
	PaymentID uuid.UUID `json:"paymentId"`
}

type PaymentFailed struct {
	Base
	PaymentID uuid.UUID `json:"paymentId"`
	Reason    string    `json:"reason"`
}

type DeliveryCreated struct {
	Base
	DeliveryID uuid.UUID `json:"deliveryId"`
}

type DeliveryAssigned struct {
	Base
	DeliveryID        uuid.UUID     `json:"deliveryId"`
	DeliveryPersonID  uuid.UUID     `json:"deliveryPersonId"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
}

type OrderDelivered struct {
	Base
	DeliveryID  uuid.UUID `json:"deliveryId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

func (OrderCreated) Type() Type     { return TypeOrderCreated }
func (OrderItemAdded) Type() Type   { return TypeOrderItemAdded }
func (OrderItemUpdated) Type() Type { return TypeOrderItemUpdated }
func (OrderItemRemoved) Type() Type { return TypeOrderItemRemoved }
func (PaymentSet) Type() Type       { return TypePaymentSet }
func (PaymentCompleted) Type() Type { return TypePaymentCompleted }
func (PaymentFailed) Type() Type    { return TypePaymentFailed }
func (DeliveryCreated) Type() Type  { return TypeDeliveryCreated }
func (DeliveryAssigned) Type() Type { return TypeDeliveryAssigned }
func (OrderDelivered) Type() Type   { return TypeOrderDelivered }

// Encode serializes an event payload. The discriminator is stored separately.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type(), err)
	}

	return payload, nil
}

// Decode rebuilds an event from its discriminator and payload.
func Decode(t Type, payload []byte) (Event, error) {
	switch t {
	case TypeOrderCreated:
		return decode[OrderCreated](t, payload)
	case TypeOrderItemAdded:
		return decode[OrderItemAdded](t, payload)
	case TypeOrderItemUpdated:
		return decode[OrderItemUpdated](t, payload)
	case TypeOrderItemRemoved:
		return decode[OrderItemRemoved](t, payload)
	case TypePaymentSet:
		return decode[PaymentSet](t, payload)
	case TypePaymentCompleted:
		return decode[PaymentCompleted](t, payload)
	case TypePaymentFailed:
		return decode[PaymentFailed](t, payload)
	case TypeDeliveryCreated:
		return decode[DeliveryCreated](t, payload)
	case TypeDeliveryAssigned:
		return decode[DeliveryAssigned](t, payload)
	case TypeOrderDelivered:
		return decode[OrderDelivered](t, payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func decode[T Event](t Type, payload []byte) (Event, error) {
	var e T
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, t, err)
	}
	// An event without its aggregate cannot be routed by any subscriber.
	if e.AggregateID() == uuid.Nil {
		return nil, fmt.Errorf("%w: %s: missing order id", ErrInvalidPayload, t)
	}

	return e, nil
}
