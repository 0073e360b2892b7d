package deliverypersonsvc

import (
	"context"
	"testing"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ideliverypersonrepo"
	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	persons map[uuid.UUID]*deliveryperson.DeliveryPerson
	locked  []uuid.UUID
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{persons: map[uuid.UUID]*deliveryperson.DeliveryPerson{}}
}

func (m *memoryRepo) Insert(_ context.Context, p deliveryperson.DeliveryPerson) error {
	m.persons[p.ID] = &p

	return nil
}

func (m *memoryRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*deliveryperson.DeliveryPerson, error) {
	p, ok := m.persons[id]
	if !ok {
		return nil, ideliverypersonrepo.ErrNotFound
	}
	m.locked = append(m.locked, id)
	cp := *p

	return &cp, nil
}

func (m *memoryRepo) ListAll(context.Context) ([]deliveryperson.DeliveryPerson, error) {
	var out []deliveryperson.DeliveryPerson
	for _, p := range m.persons {
		out = append(out, *p)
	}

	return out, nil
}

func (m *memoryRepo) Reserve(_ context.Context, id uuid.UUID) (bool, error) {
	p := m.persons[id]
	if p == nil || !p.IsAvailable {
		return false, nil
	}
	p.IsAvailable = false

	return true, nil
}

func (m *memoryRepo) Release(_ context.Context, id uuid.UUID) error {
	if p := m.persons[id]; p != nil {
		p.IsAvailable = true
	}

	return nil
}

func (m *memoryRepo) InsertAvailability(_ context.Context, a deliveryperson.Availability) error {
	p := m.persons[a.DeliveryPersonID]
	p.Availabilities = append(p.Availabilities, a)

	return nil
}

func (m *memoryRepo) HasOverlappingAvailability(
	_ context.Context,
	id uuid.UUID,
	start, end time.Time,
) (bool, error) {
	candidate := deliveryperson.Availability{StartTime: start, EndTime: end}
	for _, a := range m.persons[id].Availabilities {
		if a.Overlaps(candidate) {
			return true, nil
		}
	}

	return false, nil
}

type fakeUOW struct {
	repo      *memoryRepo
	began     int
	committed int
}

func (f *fakeUOW) Begin(context.Context) error {
	f.began++

	return nil
}

func (f *fakeUOW) Commit(context.Context) error {
	f.committed++

	return nil
}

func (f *fakeUOW) Rollback(context.Context) error { return nil }

func (f *fakeUOW) DeliveryPersonRepository() ideliverypersonrepo.IDeliveryPersonRepository {
	return f.repo
}

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newService(work *fakeUOW) *DeliveryPersonService {
	return &DeliveryPersonService{
		newUOW: func() unitOfWork { return work },
		now:    func() time.Time { return base },
	}
}

func register(t *testing.T, s *DeliveryPersonService) *deliveryperson.DeliveryPerson {
	t.Helper()

	p, err := s.Register(context.Background(), RegisterModel{
		Name:         "Ivan",
		VehicleType:  deliveryperson.VehicleBicycle,
		LicensePlate: "",
		Location:     location.Location{Latitude: 55.7, Longitude: 37.6},
	})
	require.NoError(t, err)

	return p
}

func TestRegisterStoresAvailablePerson(t *testing.T) {
	work := &fakeUOW{repo: newMemoryRepo()}
	s := newService(work)

	p := register(t, s)

	stored := work.repo.persons[p.ID]
	require.NotNil(t, stored)
	assert.True(t, stored.IsAvailable)
	assert.Equal(t, base, stored.CreatedAt)
	assert.Equal(t, deliveryperson.VehicleBicycle, stored.Vehicle.Type)
}

func TestAddAvailabilityRejectsOverlap(t *testing.T) {
	work := &fakeUOW{repo: newMemoryRepo()}
	s := newService(work)
	p := register(t, s)
	ctx := context.Background()

	_, err := s.AddAvailability(ctx, p.ID, base, base.Add(4*time.Hour))
	require.NoError(t, err)

	_, err = s.AddAvailability(ctx, p.ID, base.Add(2*time.Hour), base.Add(6*time.Hour))
	assert.ErrorIs(t, err, ErrAvailabilityOverlaps)

	a, err := s.AddAvailability(ctx, p.ID, base.Add(4*time.Hour), base.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, base.Add(4*time.Hour), a.StartTime)

	assert.Len(t, work.repo.persons[p.ID].Availabilities, 2)
	assert.Equal(t, 2, work.committed)
	assert.Len(t, work.repo.locked, 3)
}

func TestAddAvailabilityValidatesWindow(t *testing.T) {
	work := &fakeUOW{repo: newMemoryRepo()}
	s := newService(work)
	p := register(t, s)

	_, err := s.AddAvailability(context.Background(), p.ID, base, base)
	assert.ErrorIs(t, err, deliveryperson.ErrInvalidWindow)
	assert.Zero(t, work.began)
}

func TestAddAvailabilityUnknownPerson(t *testing.T) {
	work := &fakeUOW{repo: newMemoryRepo()}
	s := newService(work)

	_, err := s.AddAvailability(context.Background(), uuid.New(), base, base.Add(time.Hour))
	assert.ErrorIs(t, err, ErrDeliveryPersonNotFound)
	assert.Zero(t, work.committed)
}
