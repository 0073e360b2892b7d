package payment

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
	SetPayment(ctx context.Context, orderID uuid.UUID, model ordersvc.SetPaymentModel) (order.Payment, error)
	CompletePayment(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	FailPayment(ctx context.Context, orderID uuid.UUID, reason string) (*order.Order, error)
}

type setPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"        validate:"required"`
	TransactionID string          `json:"transactionId" validate:"required"`
}

type failPaymentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Set handles POST /orders/{orderId}/payment.
func Set(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	var req setPaymentRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, err)

		return
	}
	if !req.Amount.IsPositive() {
		httpio.WriteError(w, r, fmt.Errorf("%w: amount must be positive", httpio.ErrBadRequest))

		return
	}

	method, err := order.ParsePaymentMethod(req.Method)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	p, err := service.SetPayment(r.Context(), orderID, ordersvc.SetPaymentModel{
		Amount:        req.Amount,
		Method:        method,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusCreated, p)
}

// Complete handles POST /orders/{orderId}/payment/complete.
func Complete(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	o, err := service.CompletePayment(r.Context(), orderID)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusOK, converters.OrderToResponse(o))
}

// Fail handles POST /orders/{orderId}/payment/fail.
func Fail(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := httpio.PathUUID(r, "orderId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	var req failPaymentRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	o, err := service.FailPayment(r.Context(), orderID, req.Reason)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusOK, converters.OrderToResponse(o))
}
