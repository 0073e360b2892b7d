package order

import (
	"slices"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/google/uuid"
)

// Snapshot is the plain state of an order used by persistence and transport.
type Snapshot struct {
	ID              uuid.UUID        `json:"id"`
	CustomerID      uuid.UUID        `json:"customerId"`
	RestaurantID    uuid.UUID        `json:"restaurantId"`
	DeliveryAddress location.Address `json:"deliveryAddress"`
	Status          Status           `json:"status"`
	PlacedAt        time.Time        `json:"placedAt"`
	DeliveredAt     *time.Time       `json:"deliveredAt,omitempty"`
	IsLocked        bool             `json:"isLocked"`
	Items           []OrderItem      `json:"items"`
	Payment         *Payment         `json:"payment,omitempty"`
	Delivery        *Delivery        `json:"delivery,omitempty"`
}

// Snapshot copies the current state of the order.
func (o *Order) Snapshot() Snapshot {
	s := Snapshot{
		ID:              o.id,
		CustomerID:      o.customerID,
		RestaurantID:    o.restaurantID,
		DeliveryAddress: o.deliveryAddress,
		Status:          o.status,
		PlacedAt:        o.placedAt,
		DeliveredAt:     o.DeliveredAt(),
		IsLocked:        o.IsLocked(),
		Items:           o.Items(),
	}
	if p, ok := o.Payment(); ok {
		s.Payment = &p
	}
	if d, ok := o.Delivery(); ok {
		s.Delivery = &d
	}

	return s
}

// FromSnapshot rebuilds a loaded order. No events are raised.
func FromSnapshot(s Snapshot) *Order {
	o := &Order{
		id:              s.ID,
		customerID:      s.CustomerID,
		restaurantID:    s.RestaurantID,
		deliveryAddress: s.DeliveryAddress,
		status:          s.Status,
		placedAt:        s.PlacedAt,
		items:           slices.Clone(s.Items),
	}
	if s.DeliveredAt != nil {
		t := *s.DeliveredAt
		o.deliveredAt = &t
	}
	if s.Payment != nil {
		p := *s.Payment
		o.payment = &p
	}
	if s.Delivery != nil {
		d := *s.Delivery
		o.delivery = &d
	}

	return o
}
