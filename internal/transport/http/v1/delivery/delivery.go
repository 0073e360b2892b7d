package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/corray333/backend-labs/delivery/internal/service/services/matchingsvc"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/httpio"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/v1/converters"
	"github.com/google/uuid"
)

// service is an interface for the service layer.
type service interface {
	CreateDelivery(ctx context.Context, orderID uuid.UUID) (order.Delivery, error)
	AssignDeliveryPerson(
		ctx context.Context,
		orderID uuid.UUID,
		estimatedDuration time.Duration,
	) (*matchingsvc.Match, error)
	CompleteDelivery(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
}

// assignRequest is optional; without a body the estimate is derived from distance.
type assignRequest struct {
	EstimatedDurationMinutes int `json:"estimatedDurationMinutes" validate:"gte=0"`
}

type assignResponse struct {
	DeliveryPerson           deliveryperson.DeliveryPerson `json:"deliveryPerson"`
	DistanceKm               float64                       `json:"distanceKm"`
	EstimatedDurationMinutes int64                         `json:"estimatedDurationMinutes"`
}

// Create handles POST /orders/{orderId}/delivery.
func Create(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	d, err := service.CreateDelivery(r.Context(), orderID)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusCreated, converters.DeliveryToResponse(d))
}

// Assign handles POST /orders/{orderId}/delivery/assign.
func Assign(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	var req assignRequest
	if err := httpio.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpio.WriteError(w, r, err)

		return
	}

	eta := time.Duration(req.EstimatedDurationMinutes) * time.Minute

	match, err := service.AssignDeliveryPerson(r.Context(), orderID, eta)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	if eta == 0 {
		eta = match.EstimatedDuration()
	}

	httpio.WriteJSON(w, r, http.StatusOK, assignResponse{
		DeliveryPerson:           match.DeliveryPerson,
		DistanceKm:               match.DistanceKm,
		EstimatedDurationMinutes: int64(eta / time.Minute),
	})
}

// Complete handles POST /orders/{orderId}/delivery/complete.
func Complete(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	o, err := service.CompleteDelivery(r.Context(), orderID)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusOK, converters.OrderToResponse(o))
}
