package items

import (
	"context"
	"fmt"
	"net/http"

	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/corray333/backend-labs/delivery/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/httpio"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/v1/converters"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// service is an interface for the service layer.
type service interface {
	AddOrderItem(ctx context.Context, orderID uuid.UUID, item ordersvc.ItemModel) (order.OrderItem, error)
	UpdateOrderItem(
		ctx context.Context,
		orderID, orderItemID uuid.UUID,
		quantity int,
		price decimal.Decimal,
	) (*order.Order, error)
	RemoveOrderItem(ctx context.Context, orderID, orderItemID uuid.UUID) (*order.Order, error)
}

type addItemRequest struct {
	MenuItemID uuid.UUID       `json:"menuItemId" validate:"required"`
	Quantity   int             `json:"quantity"   validate:"gt=0"`
	Price      decimal.Decimal `json:"price"`
}

type updateItemRequest struct {
	Quantity int             `json:"quantity" validate:"gt=0"`
	Price    decimal.Decimal `json:"price"`
}

func checkPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", httpio.ErrBadRequest)
	}

	return nil
}

// Add handles POST /orders/{orderId}/items.
func Add(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	var req addItemRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, err)

		return
	}
	if err := checkPrice(req.Price); err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	item, err := service.AddOrderItem(r.Context(), orderID, ordersvc.ItemModel{
		MenuItemID: req.MenuItemID,
		Quantity:   req.Quantity,
		Price:      req.Price,
	})
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusCreated, item)
}

// Update handles PUT /orders/{orderId}/items/{itemId}.
func Update(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}
	itemID, err := httpio.PathUUID(r, "itemId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	var req updateItemRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, err)

		return
	}
	if err := checkPrice(req.Price); err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	o, err := service.UpdateOrderItem(r.Context(), orderID, itemID, req.Quantity, req.Price)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusOK, converters.OrderToResponse(o))
}

// Remove handles DELETE /orders/{orderId}/items/{itemId}.
func Remove(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}
	itemID, err := httpio.PathUUID(r, "itemId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	o, err := service.RemoveOrderItem(r.Context(), orderID, itemID)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusOK, converters.OrderToResponse(o))
}
