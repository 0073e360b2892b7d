package deliverypersonsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ideliverypersonrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/postgres"
	"github.com/corray333/backend-labs/delivery/internal/dal/uow"
	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var (
	ErrDeliveryPersonNotFound = errors.New("delivery person not found")
	ErrAvailabilityOverlaps   = errors.New("availability window overlaps an existing one")
)

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	DeliveryPersonRepository() ideliverypersonrepo.IDeliveryPersonRepository
}

// DeliveryPersonService registers delivery persons and keeps their availability ledger.
type DeliveryPersonService struct {
	newUOW func() unitOfWork
	now    func() time.Time
}

// option is a function that configures the DeliveryPersonService.
type option func(*DeliveryPersonService)

// MustNewDeliveryPersonService creates a new DeliveryPersonService.
func MustNewDeliveryPersonService(opts ...option) *DeliveryPersonService {
	s := &DeliveryPersonService{
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("deliverypersonsvc: unit of work is not configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the DeliveryPersonService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *DeliveryPersonService) {
		s.newUOW = func() unitOfWork { return uow.NewUnitOfWork(pgClient) }
	}
}

// RegisterModel holds the data needed to register a delivery person.
type RegisterModel struct {
	Name         string
	VehicleType  deliveryperson.VehicleType
	LicensePlate string
	Location     location.Location
}

// Register stores a new, available delivery person without availability windows.
func (s *DeliveryPersonService) Register(
	ctx context.Context,
	model RegisterModel,
) (*deliveryperson.DeliveryPerson, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.RegisterDeliveryPerson")
	defer span.End()

	now := s.now()
	p := deliveryperson.DeliveryPerson{
		ID:   uuid.New(),
		Name: model.Name,
		Vehicle: deliveryperson.Vehicle{
			Type:         model.VehicleType,
			LicensePlate: model.LicensePlate,
		},
		Location:    model.Location,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	work := s.newUOW()
	if err := work.DeliveryPersonRepository().Insert(ctx, p); err != nil {
		slog.ErrorContext(ctx, "Failed to register delivery person", "error", err)

		return nil, err
	}

	slog.InfoContext(ctx, "Delivery person registered", "delivery_person_id", p.ID, "vehicle", p.Vehicle.Type)

	return &p, nil
}

// List returns every delivery person with their availability windows.
func (s *DeliveryPersonService) List(ctx context.Context) ([]deliveryperson.DeliveryPerson, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.ListDeliveryPersons")
	defer span.End()

	return s.newUOW().DeliveryPersonRepository().ListAll(ctx)
}

// AddAvailability appends a window to the person's ledger. The person row is
// locked first so two concurrent inserts cannot both pass the overlap check.
func (s *DeliveryPersonService) AddAvailability(
	ctx context.Context,
	deliveryPersonID uuid.UUID,
	start, end time.Time,
) (*deliveryperson.Availability, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.AddAvailability")
	defer span.End()

	a, err := deliveryperson.NewAvailability(deliveryPersonID, start, end)
	if err != nil {
		return nil, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := work.Rollback(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		}
	}()

	repo := work.DeliveryPersonRepository()

	if _, err := repo.GetForUpdate(ctx, deliveryPersonID); err != nil {
		if errors.Is(err, ideliverypersonrepo.ErrNotFound) {
			return nil, ErrDeliveryPersonNotFound
		}

		return nil, err
	}

	overlaps, err := repo.HasOverlappingAvailability(ctx, deliveryPersonID, a.StartTime, a.EndTime)
	if err != nil {
		return nil, err
	}
	if overlaps {
		return nil, ErrAvailabilityOverlaps
	}

	if err := repo.InsertAvailability(ctx, a); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit availability: %w", err)
	}

	slog.InfoContext(ctx, "Availability added",
		"delivery_person_id", deliveryPersonID,
		"start", a.StartTime,
		"end", a.EndTime,
	)

	return &a, nil
}
