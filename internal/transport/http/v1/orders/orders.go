package orders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/corray333/backend-labs/delivery/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/corray333/backend-labs/delivery/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/httpio"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/v1/converters"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, model ordersvc.CreateOrderModel) (*order.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetAuditTrail(ctx context.Context, id uuid.UUID) ([]auditlog.AuditLogOrder, error)
}

// itemInCreateOrderRequest represents an item in a create order request.
type itemInCreateOrderRequest struct {
	MenuItemID uuid.UUID       `json:"menuItemId" validate:"required"`
	Quantity   int             `json:"quantity"   validate:"gt=0"`
	Price      decimal.Decimal `json:"price"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	CustomerID      uuid.UUID                  `json:"customerId"      validate:"required"`
	RestaurantID    uuid.UUID                  `json:"restaurantId"    validate:"required"`
	DeliveryAddress converters.AddressRequest  `json:"deliveryAddress"`
	Items           []itemInCreateOrderRequest `json:"items"           validate:"dive"`
}

// toModel converts createOrderRequest to ordersvc.CreateOrderModel.
func (r *createOrderRequest) toModel() (ordersvc.CreateOrderModel, error) {
	items := make([]ordersvc.ItemModel, 0, len(r.Items))
	for _, item := range r.Items {
		if !item.Price.IsPositive() {
			return ordersvc.CreateOrderModel{}, fmt.Errorf("%w: item price must be positive", httpio.ErrBadRequest)
		}
		items = append(items, ordersvc.ItemModel{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Price:      item.Price,
		})
	}

	return ordersvc.CreateOrderModel{
		CustomerID:      r.CustomerID,
		RestaurantID:    r.RestaurantID,
		DeliveryAddress: r.DeliveryAddress.ToModel(),
		Items:           items,
	}, nil
}

// Create handles POST /orders.
func Create(w http.ResponseWriter, r *http.Request, service service) {
	var req createOrderRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	model, err := req.toModel()
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	o, err := service.CreateOrder(r.Context(), model)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusCreated, converters.OrderToResponse(o))
}

// Get handles GET /orders/{orderId}.
func Get(w http.ResponseWriter, r *http.Request, service service) {
	id, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	o, err := service.GetOrder(r.Context(), id)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusOK, converters.OrderToResponse(o))
}

// Delete handles DELETE /orders/{orderId}.
func Delete(w http.ResponseWriter, r *http.Request, service service) {
	id, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	if err := service.DeleteOrder(r.Context(), id); err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AuditTrail handles GET /orders/{orderId}/audit.
func AuditTrail(w http.ResponseWriter, r *http.Request, service service) {
	id, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	trail, err := service.GetAuditTrail(r.Context(), id)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}
	if trail == nil {
		trail = []auditlog.AuditLogOrder{}
	}

	httpio.WriteJSON(w, r, http.StatusOK, trail)
}
