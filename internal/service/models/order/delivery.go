package order

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus moves Pending -> Assigned -> Delivered.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "Pending"
	DeliveryStatusAssigned  DeliveryStatus = "Assigned"
	DeliveryStatusDelivered DeliveryStatus = "Delivered"
)

// Delivery tracks how the order gets to the customer.
type Delivery struct {
	ID                 uuid.UUID      `json:"id"`
	OrderID            uuid.UUID      `json:"orderId"`
	DeliveryPersonID   *uuid.UUID     `json:"deliveryPersonId,omitempty"`
	PickupTime         *time.Time     `json:"pickupTime,omitempty"`
	EstimatedDuration  time.Duration  `json:"estimatedDuration"`
	ActualDeliveryTime *time.Time     `json:"actualDeliveryTime,omitempty"`
	Status             DeliveryStatus `json:"status"`
}

// IsAssigned reports whether a delivery person has been attached.
func (d *Delivery) IsAssigned() bool {
	return d != nil && d.DeliveryPersonID != nil
}
