package audittrail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/delivery/internal/service/eventbus"
	"github.com/corray333/backend-labs/delivery/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/delivery/internal/service/models/event"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

const (
	Name = "audit-trail"

	// StatusDeleted is recorded when the order no longer exists at dispatch time.
	StatusDeleted = "Deleted"
)

type orderReader interface {
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

// AuditTrail stores every order event with the order status it left behind.
type AuditTrail struct {
	auditRepo iauditrepo.IAuditRepository
	orders    orderReader
	now       func() time.Time
}

func New(auditRepo iauditrepo.IAuditRepository, orders orderReader) *AuditTrail {
	return &AuditTrail{
		auditRepo: auditRepo,
		orders:    orders,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (a *AuditTrail) Name() string { return Name }

func (a *AuditTrail) Handle(ctx context.Context, env eventbus.Envelope) error {
	ctx, span := otel.Tracer("service").Start(ctx, "AuditTrail.Handle")
	defer span.End()

	status, err := a.statusAfter(ctx, env.Event)
	if err != nil {
		return err
	}

	entry := auditlog.AuditLogOrder{
		OrderID:     env.Event.AggregateID(),
		MessageID:   env.MessageID,
		EventType:   env.Event.Type().String(),
		OrderStatus: status,
		CreatedAt:   a.now(),
	}
	if err := a.auditRepo.SaveAuditLogs(ctx, []auditlog.AuditLogOrder{entry}); err != nil {
		slog.ErrorContext(ctx, "Failed to save audit log", "order_id", entry.OrderID, "error", err)

		return err
	}

	return nil
}

// statusAfter prefers the status the event itself implies and falls back to the stored order.
func (a *AuditTrail) statusAfter(ctx context.Context, e event.Event) (string, error) {
	switch e.(type) {
	case event.OrderCreated:
		return order.StatusPending.String(), nil
	case event.DeliveryAssigned:
		return order.StatusOnTheWay.String(), nil
	case event.OrderDelivered:
		return order.StatusDelivered.String(), nil
	}

	o, err := a.orders.Get(ctx, e.AggregateID())
	if errors.Is(err, iorderrepo.ErrNotFound) {
		return StatusDeleted, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load order for audit: %w", err)
	}

	return o.Status().String(), nil
}
