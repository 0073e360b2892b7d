package location

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Location is a point on the Earth surface in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Address is a postal address with its geo-coordinates.
type Address struct {
	Street   string   `json:"street"`
	City     string   `json:"city"`
	State    string   `json:"state"`
	Location Location `json:"location"`
}

// DistanceKm returns the haversine great-circle distance between l and other.
func (l Location) DistanceKm(other Location) float64 {
	lat1 := toRadians(l.Latitude)
	lat2 := toRadians(other.Latitude)
	dLat := toRadians(other.Latitude - l.Latitude)
	dLon := toRadians(other.Longitude - l.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
