package deliveryperson

import (
	"database/sql/driver"
	"errors"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/google/uuid"
)

// VehicleType determines how far a delivery person may travel.
type VehicleType string

const (
	VehiclePedestrian VehicleType = "Pedestrian"
	VehicleBicycle    VehicleType = "Bicycle"
	VehicleScooter    VehicleType = "Scooter"
	VehicleMotorcycle VehicleType = "Motorcycle"
	VehicleCar        VehicleType = "Car"
	VehicleTruck      VehicleType = "Truck"
)

var ErrInvalidVehicleType = errors.New("invalid vehicle type")

// maxServiceRadiusKm is keyed by vehicle type.
var maxServiceRadiusKm = map[VehicleType]float64{
	VehiclePedestrian: 2,
	VehicleBicycle:    5,
	VehicleScooter:    8,
	VehicleMotorcycle: 12,
	VehicleCar:        15,
	VehicleTruck:      20,
}

// averageSpeedKmh is used for the delivery time estimate.
var averageSpeedKmh = map[VehicleType]float64{
	VehiclePedestrian: 5,
	VehicleBicycle:    15,
	VehicleScooter:    25,
	VehicleMotorcycle: 35,
	VehicleCar:        30,
	VehicleTruck:      25,
}

// handoverTime covers pickup at the restaurant and handover to the customer.
const handoverTime = 10 * time.Minute

func (v VehicleType) String() string {
	return string(v)
}

func (v VehicleType) Value() (driver.Value, error) {
	return v.String(), nil
}

// MaxServiceRadiusKm returns zero for unknown vehicle types.
func (v VehicleType) MaxServiceRadiusKm() float64 {
	return maxServiceRadiusKm[v]
}

// EstimateTravel returns the expected time to cover distanceKm plus handover.
// Unknown vehicle types get the pedestrian speed.
func (v VehicleType) EstimateTravel(distanceKm float64) time.Duration {
	speed, ok := averageSpeedKmh[v]
	if !ok {
		speed = averageSpeedKmh[VehiclePedestrian]
	}

	travel := time.Duration(distanceKm / speed * float64(time.Hour))

	return (travel + handoverTime).Round(time.Minute)
}

func ParseVehicleType(s string) (VehicleType, error) {
	v := VehicleType(s)
	if _, ok := maxServiceRadiusKm[v]; !ok {
		return "", ErrInvalidVehicleType
	}

	return v, nil
}

// Vehicle is what a delivery person drives or rides.
type Vehicle struct {
	Type         VehicleType `json:"type"`
	LicensePlate string      `json:"licensePlate"`
}

// DeliveryPerson is an agent who can be reserved for an order.
type DeliveryPerson struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Vehicle        Vehicle           `json:"vehicle"`
	Location       location.Location `json:"location"`
	IsAvailable    bool              `json:"isAvailable"`
	Availabilities []Availability    `json:"availabilities"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// DistanceKmTo returns the great-circle distance to target.
func (p DeliveryPerson) DistanceKmTo(target location.Location) float64 {
	return p.Location.DistanceKm(target)
}

// CanReach reports whether target lies within the vehicle's service radius.
func (p DeliveryPerson) CanReach(target location.Location) bool {
	return p.DistanceKmTo(target) <= p.Vehicle.Type.MaxServiceRadiusKm()
}

// IsAvailableAt reports whether any availability window covers at.
func (p DeliveryPerson) IsAvailableAt(at time.Time) bool {
	for _, a := range p.Availabilities {
		if a.Covers(at) {
			return true
		}
	}

	return false
}
