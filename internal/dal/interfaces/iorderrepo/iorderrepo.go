package iorderrepo

import (
	"context"
	"errors"

	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("order not found")

// IOrderRepository persists the order aggregate with its items, payment and delivery.
type IOrderRepository interface {
	// Get loads an order. GetForUpdate also locks its row until the transaction ends.
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error)

	// Save upserts the order and replaces its owned entities.
	Save(ctx context.Context, o *order.Order) error

	// Delete removes the order; owned entities are cascade-deleted.
	Delete(ctx context.Context, id uuid.UUID) error
}
