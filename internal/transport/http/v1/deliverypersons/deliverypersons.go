package deliverypersons

import (
	"context"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/corray333/backend-labs/delivery/internal/service/services/deliverypersonsvc"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/httpio"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/v1/converters"
	"github.com/google/uuid"
)

// service is an interface for the service layer.
type service interface {
	Register(ctx context.Context, model deliverypersonsvc.RegisterModel) (*deliveryperson.DeliveryPerson, error)
	List(ctx context.Context) ([]deliveryperson.DeliveryPerson, error)
	AddAvailability(
		ctx context.Context,
		deliveryPersonID uuid.UUID,
		start, end time.Time,
	) (*deliveryperson.Availability, error)
}

type registerRequest struct {
	Name         string  `json:"name"         validate:"required"`
	VehicleType  string  `json:"vehicleType"  validate:"required"`
	LicensePlate string  `json:"licensePlate"`
	Latitude     float64 `json:"latitude"     validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude"    validate:"gte=-180,lte=180"`
}

type addAvailabilityRequest struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime"   validate:"required"`
}

// Register handles POST /delivery-persons.
func Register(w http.ResponseWriter, r *http.Request, service service) {
	var req registerRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	vehicleType, err := deliveryperson.ParseVehicleType(req.VehicleType)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	p, err := service.Register(r.Context(), deliverypersonsvc.RegisterModel{
		Name:         req.Name,
		VehicleType:  vehicleType,
		LicensePlate: req.LicensePlate,
		Location:     location.Location{Latitude: req.Latitude, Longitude: req.Longitude},
	})
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusCreated, converters.DeliveryPersonToResponse(*p))
}

// List handles GET /delivery-persons.
func List(w http.ResponseWriter, r *http.Request, service service) {
	persons, err := service.List(r.Context())
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	resp := make([]converters.DeliveryPersonResponse, 0, len(persons))
	for _, p := range persons {
		resp = append(resp, converters.DeliveryPersonToResponse(p))
	}

	httpio.WriteJSON(w, r, http.StatusOK, resp)
}

// AddAvailability handles POST /delivery-persons/{deliveryPersonId}/availabilities.
func AddAvailability(w http.ResponseWriter, r *http.Request, service service) {
	id, err := httpio.PathUUID(r, "deliveryPersonId")
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	var req addAvailabilityRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	a, err := service.AddAvailability(r.Context(), id, req.StartTime, req.EndTime)
	if err != nil {
		httpio.WriteError(w, r, err)

		return
	}

	httpio.WriteJSON(w, r, http.StatusCreated, a)
}
