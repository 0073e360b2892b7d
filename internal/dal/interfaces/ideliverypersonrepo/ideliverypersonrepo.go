package ideliverypersonrepo

import (
	"context"
	"errors"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("delivery person not found")

// IDeliveryPersonRepository gives access to delivery persons and their availability ledger.
type IDeliveryPersonRepository interface {
	Insert(ctx context.Context, p deliveryperson.DeliveryPerson) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (*deliveryperson.DeliveryPerson, error)

	// ListAll returns every delivery person with availability windows attached.
	ListAll(ctx context.Context) ([]deliveryperson.DeliveryPerson, error)

	// Reserve flips the availability flag from true to false.
	// It reports false when the person was already reserved.
	Reserve(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, id uuid.UUID) error

	InsertAvailability(ctx context.Context, a deliveryperson.Availability) error
	HasOverlappingAvailability(
		ctx context.Context,
		deliveryPersonID uuid.UUID,
		start, end time.Time,
	) (bool, error)
}
