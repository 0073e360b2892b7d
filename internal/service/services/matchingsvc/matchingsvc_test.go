package matchingsvc

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	at     = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	origin = location.Location{Latitude: 55.75, Longitude: 37.61}
)

// kmNorth returns a point km kilometres due north of origin.
func kmNorth(km float64) location.Location {
	deg := km / location.EarthRadiusKm * 180 / math.Pi

	return location.Location{Latitude: origin.Latitude + deg, Longitude: origin.Longitude}
}

type fakeRepo struct {
	persons    []deliveryperson.DeliveryPerson
	reserveErr error
	lost       bool
	// takenElsewhere lists persons another request reserved after ListAll.
	takenElsewhere map[uuid.UUID]bool
	attempted      []uuid.UUID
	reserved       []uuid.UUID
}

func (f *fakeRepo) ListAll(context.Context) ([]deliveryperson.DeliveryPerson, error) {
	out := make([]deliveryperson.DeliveryPerson, len(f.persons))
	copy(out, f.persons)

	return out, nil
}

func (f *fakeRepo) Reserve(_ context.Context, id uuid.UUID) (bool, error) {
	f.attempted = append(f.attempted, id)
	if f.reserveErr != nil {
		return false, f.reserveErr
	}
	if f.lost || f.takenElsewhere[id] {
		return false, nil
	}
	for i := range f.persons {
		if f.persons[i].ID == id && f.persons[i].IsAvailable {
			f.persons[i].IsAvailable = false
			f.reserved = append(f.reserved, id)

			return true, nil
		}
	}

	return false, nil
}

func (f *fakeRepo) availability() []bool {
	flags := make([]bool, len(f.persons))
	for i, p := range f.persons {
		flags[i] = p.IsAvailable
	}

	return flags
}

func person(t *testing.T, vehicle deliveryperson.VehicleType, km float64) deliveryperson.DeliveryPerson {
	t.Helper()

	id := uuid.New()
	window, err := deliveryperson.NewAvailability(id, at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)

	return deliveryperson.DeliveryPerson{
		ID:             id,
		Name:           "courier",
		Vehicle:        deliveryperson.Vehicle{Type: vehicle},
		Location:       kmNorth(km),
		IsAvailable:    true,
		Availabilities: []deliveryperson.Availability{window},
	}
}

func newOrder() *order.Order {
	return order.New(uuid.New(), uuid.New(), location.Address{Street: "Tverskaya 1", City: "Moscow", Location: origin})
}

func TestSelectsNearestAndReservesIt(t *testing.T) {
	repo := &fakeRepo{persons: []deliveryperson.DeliveryPerson{
		person(t, deliveryperson.VehicleTruck, 50),
		person(t, deliveryperson.VehicleTruck, 1),
		person(t, deliveryperson.VehicleTruck, 30),
	}}

	match, err := NewMatchingService().SelectBestDeliveryPerson(context.Background(), repo, newOrder(), at)
	require.NoError(t, err)

	assert.Equal(t, repo.persons[1].ID, match.DeliveryPerson.ID)
	assert.InDelta(t, 1.0, match.DistanceKm, 0.01)
	assert.False(t, match.DeliveryPerson.IsAvailable)
	assert.Equal(t, []bool{true, false, true}, repo.availability())
}

func TestTiesKeepRepositoryOrder(t *testing.T) {
	first := person(t, deliveryperson.VehicleCar, 3)
	second := person(t, deliveryperson.VehicleCar, 3)
	repo := &fakeRepo{persons: []deliveryperson.DeliveryPerson{first, second}}

	match, err := NewMatchingService().SelectBestDeliveryPerson(context.Background(), repo, newOrder(), at)
	require.NoError(t, err)
	assert.Equal(t, first.ID, match.DeliveryPerson.ID)
}

func TestVehicleRadiusFiltersCandidates(t *testing.T) {
	near := person(t, deliveryperson.VehiclePedestrian, 3) // beyond 2 km
	far := person(t, deliveryperson.VehicleCar, 10)
	repo := &fakeRepo{persons: []deliveryperson.DeliveryPerson{near, far}}

	match, err := NewMatchingService().SelectBestDeliveryPerson(context.Background(), repo, newOrder(), at)
	require.NoError(t, err)
	assert.Equal(t, far.ID, match.DeliveryPerson.ID)
	assert.Equal(t, 30*time.Minute, match.EstimatedDuration())
}

func TestNoCandidateLeavesFlagsUntouched(t *testing.T) {
	outOfWindow := person(t, deliveryperson.VehicleCar, 1)
	outOfWindow.Availabilities[0].StartTime = at.Add(time.Hour)
	outOfWindow.Availabilities[0].EndTime = at.Add(2 * time.Hour)

	endsAtNow := person(t, deliveryperson.VehicleCar, 1)
	endsAtNow.Availabilities[0].EndTime = at

	flaggedBusy := person(t, deliveryperson.VehicleCar, 1)
	flaggedBusy.IsAvailable = false

	tests := []struct {
		name    string
		persons []deliveryperson.DeliveryPerson
	}{
		{name: "empty"},
		{name: "out of radius", persons: []deliveryperson.DeliveryPerson{
			person(t, deliveryperson.VehicleBicycle, 6),
			person(t, deliveryperson.VehicleTruck, 21),
		}},
		{name: "out of window", persons: []deliveryperson.DeliveryPerson{outOfWindow, endsAtNow}},
		{name: "not available", persons: []deliveryperson.DeliveryPerson{flaggedBusy}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{persons: tt.persons}
			before := repo.availability()

			_, err := NewMatchingService().SelectBestDeliveryPerson(context.Background(), repo, newOrder(), at)
			assert.ErrorIs(t, err, ErrNoAvailableDeliveryPerson)
			assert.Equal(t, before, repo.availability())
			assert.Empty(t, repo.reserved)
		})
	}
}

func TestLostReservationFallsBackToNextNearest(t *testing.T) {
	nearest := person(t, deliveryperson.VehicleCar, 1)
	middle := person(t, deliveryperson.VehicleCar, 4)
	farthest := person(t, deliveryperson.VehicleCar, 9)
	repo := &fakeRepo{
		persons:        []deliveryperson.DeliveryPerson{farthest, nearest, middle},
		takenElsewhere: map[uuid.UUID]bool{nearest.ID: true},
	}

	match, err := NewMatchingService().SelectBestDeliveryPerson(context.Background(), repo, newOrder(), at)
	require.NoError(t, err)

	assert.Equal(t, middle.ID, match.DeliveryPerson.ID)
	assert.InDelta(t, 4.0, match.DistanceKm, 0.01)
	assert.Equal(t, []uuid.UUID{nearest.ID, middle.ID}, repo.attempted)
	assert.Equal(t, []uuid.UUID{middle.ID}, repo.reserved)
}

func TestEveryCandidateLostToConcurrentRequests(t *testing.T) {
	repo := &fakeRepo{
		persons: []deliveryperson.DeliveryPerson{
			person(t, deliveryperson.VehicleCar, 1),
			person(t, deliveryperson.VehicleCar, 2),
		},
		lost: true,
	}

	_, err := NewMatchingService().SelectBestDeliveryPerson(context.Background(), repo, newOrder(), at)
	assert.ErrorIs(t, err, ErrDeliveryPersonAlreadyReserved)
	assert.Len(t, repo.attempted, 2)
	assert.Empty(t, repo.reserved)
}

func TestReserveErrorIsWrapped(t *testing.T) {
	dbErr := errors.New("connection reset")
	repo := &fakeRepo{
		persons:    []deliveryperson.DeliveryPerson{person(t, deliveryperson.VehicleCar, 1)},
		reserveErr: dbErr,
	}

	_, err := NewMatchingService().SelectBestDeliveryPerson(context.Background(), repo, newOrder(), at)
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrNoAvailableDeliveryPerson)
	assert.Len(t, repo.attempted, 1, "store errors are not retried on other candidates")
}
