package httpio

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/corray333/backend-labs/delivery/internal/service/services/deliverypersonsvc"
	"github.com/corray333/backend-labs/delivery/internal/service/services/matchingsvc"
	"github.com/corray333/backend-labs/delivery/internal/service/services/ordersvc"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrBadRequest marks malformed or invalid input.
var ErrBadRequest = errors.New("bad request")

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decode reads a JSON body into dst and validates its struct tags.
func Decode(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: failed to decode request body: %w", ErrBadRequest, err)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	return nil
}

// PathUUID parses a uuid chi path parameter.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}

	return id, nil
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "Error writing response", "error", err)
	}
}

type mapping struct {
	target error
	status int
	code   string
}

var mappings = []mapping{
	{target: ordersvc.ErrOrderNotFound, status: http.StatusNotFound, code: "Order.NotFound"},
	{target: deliverypersonsvc.ErrDeliveryPersonNotFound, status: http.StatusNotFound, code: "DeliveryPerson.NotFound"},
	{target: order.ErrOrderItemNotFound, status: http.StatusNotFound, code: order.ErrOrderItemNotFound.Code},
	{target: matchingsvc.ErrNoAvailableDeliveryPerson, status: http.StatusConflict, code: "Matching.NoAvailableDeliveryPerson"},
	{target: matchingsvc.ErrDeliveryPersonAlreadyReserved, status: http.StatusConflict, code: "Matching.DeliveryPersonAlreadyReserved"},
	{target: deliverypersonsvc.ErrAvailabilityOverlaps, status: http.StatusConflict, code: "Availability.Overlaps"},
	{target: deliveryperson.ErrInvalidWindow, status: http.StatusBadRequest, code: "Availability.InvalidWindow"},
	{target: deliveryperson.ErrInvalidVehicleType, status: http.StatusBadRequest, code: "DeliveryPerson.InvalidVehicleType"},
	{target: order.ErrInvalidPaymentMethod, status: http.StatusBadRequest, code: "Payment.InvalidMethod"},
	{target: ErrBadRequest, status: http.StatusBadRequest, code: "Request.Invalid"},
}

// WriteError maps err to a status and a stable code. Unknown errors are
// logged and answered with 500 without leaking their text.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			WriteJSON(w, r, m.status, ErrorResponse{Code: m.code, Message: err.Error()})

			return
		}
	}

	var businessErr *order.Error
	if errors.As(err, &businessErr) {
		WriteJSON(w, r, http.StatusConflict, ErrorResponse{Code: businessErr.Code, Message: businessErr.Message})

		return
	}

	slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	WriteJSON(w, r, http.StatusInternalServerError, ErrorResponse{
		Code:    "Internal",
		Message: http.StatusText(http.StatusInternalServerError),
	})
}
