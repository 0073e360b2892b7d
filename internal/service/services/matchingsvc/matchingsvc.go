package matchingsvc

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/metrics"
	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrNoAvailableDeliveryPerson     = errors.New("no available delivery person")
	ErrDeliveryPersonAlreadyReserved = errors.New("delivery person already reserved")
)

// Repository is the slice of the delivery person store matching needs.
// Callers pass the transaction-bound repository so the reservation commits
// or rolls back together with the assignment.
type Repository interface {
	ListAll(ctx context.Context) ([]deliveryperson.DeliveryPerson, error)
	Reserve(ctx context.Context, id uuid.UUID) (bool, error)
}

// Match is the reserved delivery person and their distance to the order.
type Match struct {
	DeliveryPerson deliveryperson.DeliveryPerson
	DistanceKm     float64
}

// EstimatedDuration is the expected time to reach the delivery address.
func (m Match) EstimatedDuration() time.Duration {
	return m.DeliveryPerson.Vehicle.Type.EstimateTravel(m.DistanceKm)
}

// MatchingService picks and reserves the nearest eligible delivery person.
type MatchingService struct{}

func NewMatchingService() *MatchingService {
	return &MatchingService{}
}

// SelectBestDeliveryPerson filters candidates by availability flag, vehicle
// reach and a window covering at, then reserves the nearest one. Ties keep
// the repository order. When a candidate is reserved concurrently the next
// nearest is tried. Nothing is mutated when no candidate qualifies.
func (s *MatchingService) SelectBestDeliveryPerson(
	ctx context.Context,
	repo Repository,
	o *order.Order,
	at time.Time,
) (*Match, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.SelectBestDeliveryPerson")
	defer span.End()

	persons, err := repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery persons: %w", err)
	}

	ranked := rank(persons, o.DeliveryAddress().Location, at.UTC())

	span.SetAttributes(
		attribute.Int("matching.candidates", len(persons)),
		attribute.Int("matching.eligible", len(ranked)),
	)

	if len(ranked) == 0 {
		metrics.MatchingOutcomes.WithLabelValues("none").Inc()
		slog.InfoContext(ctx, "No delivery person available", "order_id", o.ID(), "candidates", len(persons))

		return nil, ErrNoAvailableDeliveryPerson
	}

	for _, m := range ranked {
		reserved, err := repo.Reserve(ctx, m.DeliveryPerson.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve delivery person: %w", err)
		}
		if !reserved {
			metrics.MatchingOutcomes.WithLabelValues("reserved").Inc()
			slog.WarnContext(ctx, "Delivery person reserved concurrently, trying next",
				"order_id", o.ID(),
				"delivery_person_id", m.DeliveryPerson.ID,
			)

			continue
		}

		best := m
		best.DeliveryPerson.IsAvailable = false
		metrics.MatchingOutcomes.WithLabelValues("matched").Inc()
		slog.InfoContext(ctx, "Delivery person matched",
			"order_id", o.ID(),
			"delivery_person_id", best.DeliveryPerson.ID,
			"distance_km", best.DistanceKm,
		)

		return &best, nil
	}

	return nil, ErrDeliveryPersonAlreadyReserved
}

// rank keeps the eligible candidates, nearest first.
func rank(persons []deliveryperson.DeliveryPerson, target location.Location, at time.Time) []Match {
	var ranked []Match
	for _, p := range persons {
		if !p.IsAvailable || !p.IsAvailableAt(at) {
			continue
		}

		distance := p.DistanceKmTo(target)
		if distance > p.Vehicle.Type.MaxServiceRadiusKm() {
			continue
		}

		ranked = append(ranked, Match{DeliveryPerson: p, DistanceKm: distance})
	}

	slices.SortStableFunc(ranked, func(a, b Match) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})

	return ranked
}
