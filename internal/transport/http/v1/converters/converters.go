package converters

import (
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddressRequest is the delivery address accepted by the API.
type AddressRequest struct {
	Street    string  `json:"street"    validate:"required"`
	City      string  `json:"city"      validate:"required"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"  validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// ToModel converts AddressRequest to location.Address.
func (a AddressRequest) ToModel() location.Address {
	return location.Address{
		Street: a.Street,
		City:   a.City,
		State:  a.State,
		Location: location.Location{
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
		},
	}
}

// DeliveryResponse exposes the estimate in minutes instead of nanoseconds.
type DeliveryResponse struct {
	ID                       uuid.UUID            `json:"id"`
	DeliveryPersonID         *uuid.UUID           `json:"deliveryPersonId,omitempty"`
	PickupTime               *time.Time           `json:"pickupTime,omitempty"`
	EstimatedDurationMinutes int64                `json:"estimatedDurationMinutes"`
	ActualDeliveryTime       *time.Time           `json:"actualDeliveryTime,omitempty"`
	Status                   order.DeliveryStatus `json:"status"`
}

// DeliveryToResponse converts order.Delivery to DeliveryResponse.
func DeliveryToResponse(d order.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:                       d.ID,
		DeliveryPersonID:         d.DeliveryPersonID,
		PickupTime:               d.PickupTime,
		EstimatedDurationMinutes: int64(d.EstimatedDuration / time.Minute),
		ActualDeliveryTime:       d.ActualDeliveryTime,
		Status:                   d.Status,
	}
}

// OrderResponse is the API view of an order.
type OrderResponse struct {
	ID              uuid.UUID         `json:"id"`
	CustomerID      uuid.UUID         `json:"customerId"`
	RestaurantID    uuid.UUID         `json:"restaurantId"`
	DeliveryAddress location.Address  `json:"deliveryAddress"`
	Status          order.Status      `json:"status"`
	PlacedAt        time.Time         `json:"placedAt"`
	DeliveredAt     *time.Time        `json:"deliveredAt,omitempty"`
	IsLocked        bool              `json:"isLocked"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Items           []order.OrderItem `json:"items"`
	Payment         *order.Payment    `json:"payment,omitempty"`
	Delivery        *DeliveryResponse `json:"delivery,omitempty"`
}

// OrderToResponse converts order.Order to OrderResponse.
func OrderToResponse(o *order.Order) OrderResponse {
	s := o.Snapshot()

	resp := OrderResponse{
		ID:              s.ID,
		CustomerID:      s.CustomerID,
		RestaurantID:    s.RestaurantID,
		DeliveryAddress: s.DeliveryAddress,
		Status:          s.Status,
		PlacedAt:        s.PlacedAt,
		DeliveredAt:     s.DeliveredAt,
		IsLocked:        s.IsLocked,
		Subtotal:        o.Subtotal(),
		Items:           s.Items,
		Payment:         s.Payment,
	}
	if resp.Items == nil {
		resp.Items = []order.OrderItem{}
	}
	if s.Delivery != nil {
		d := DeliveryToResponse(*s.Delivery)
		resp.Delivery = &d
	}

	return resp
}

// DeliveryPersonResponse is the API view of a delivery person.
type DeliveryPersonResponse struct {
	deliveryperson.DeliveryPerson
	MaxServiceRadiusKm float64 `json:"maxServiceRadiusKm"`
}

// DeliveryPersonToResponse converts deliveryperson.DeliveryPerson to DeliveryPersonResponse.
func DeliveryPersonToResponse(p deliveryperson.DeliveryPerson) DeliveryPersonResponse {
	if p.Availabilities == nil {
		p.Availabilities = []deliveryperson.Availability{}
	}

	return DeliveryPersonResponse{
		DeliveryPerson:     p,
		MaxServiceRadiusKm: p.Vehicle.Type.MaxServiceRadiusKm(),
	}
}
