package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ideliverypersonrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/postgres"
	"github.com/corray333/backend-labs/delivery/internal/dal/uow"
	"github.com/corray333/backend-labs/delivery/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/corray333/backend-labs/delivery/internal/service/models/outbox"
	"github.com/corray333/backend-labs/delivery/internal/service/services/matchingsvc"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var ErrOrderNotFound = errors.New("order not found")

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	DeliveryPersonRepository() ideliverypersonrepo.IDeliveryPersonRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
	AuditRepository() iauditrepo.IAuditRepository
}

type matcher interface {
	SelectBestDeliveryPerson(
		ctx context.Context,
		repo matchingsvc.Repository,
		o *order.Order,
		at time.Time,
	) (*matchingsvc.Match, error)
}

// OrderService runs order commands. Each command loads the order under a row
// lock, mutates the aggregate, saves it and appends the raised events to the
// outbox in one transaction.
type OrderService struct {
	newUOW  func() unitOfWork
	matcher matcher
	now     func() time.Time
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		matcher: matchingsvc.NewMatchingService(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: unit of work is not configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.newUOW = func() unitOfWork { return uow.NewUnitOfWork(pgClient) }
	}
}

// WithMatchingService replaces the default delivery person matcher.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMatchingService(m *matchingsvc.MatchingService) option {
	return func(s *OrderService) {
		s.matcher = m
	}
}

// ItemModel is one line of a new order.
type ItemModel struct {
	MenuItemID uuid.UUID
	Quantity   int
	Price      decimal.Decimal
}

// CreateOrderModel holds the data needed to place an order.
type CreateOrderModel struct {
	CustomerID      uuid.UUID
	RestaurantID    uuid.UUID
	DeliveryAddress location.Address
	Items           []ItemModel
}

// CreateOrder places a new pending order with its initial items.
func (s *OrderService) CreateOrder(ctx context.Context, model CreateOrderModel) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.CreateOrder")
	defer span.End()

	o := order.New(model.CustomerID, model.RestaurantID, model.DeliveryAddress)
	for _, item := range model.Items {
		if _, err := o.AddOrderItem(item.MenuItemID, item.Quantity, item.Price); err != nil {
			return nil, err
		}
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer rollback(ctx, work)

	if err := s.persist(ctx, work, o); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Order created", "order_id", o.ID(), "items", len(model.Items))

	return o, nil
}

// GetOrder loads an order without locking it.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.GetOrder")
	defer span.End()

	o, err := s.newUOW().OrderRepository().Get(ctx, id)
	if errors.Is(err, iorderrepo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	return o, nil
}

// GetAuditTrail returns the dispatched events recorded for an order, oldest first.
func (s *OrderService) GetAuditTrail(ctx context.Context, id uuid.UUID) ([]auditlog.AuditLogOrder, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.GetAuditTrail")
	defer span.End()

	return s.newUOW().AuditRepository().ListByOrder(ctx, id)
}

func (s *OrderService) AddOrderItem(
	ctx context.Context,
	orderID uuid.UUID,
	item ItemModel,
) (order.OrderItem, error) {
	var added order.OrderItem
	_, err := s.execute(ctx, "Service.AddOrderItem", orderID, func(_ context.Context, _ unitOfWork, o *order.Order) error {
		var err error
		added, err = o.AddOrderItem(item.MenuItemID, item.Quantity, item.Price)

		return err
	})

	return added, err
}

func (s *OrderService) UpdateOrderItem(
	ctx context.Context,
	orderID, orderItemID uuid.UUID,
	quantity int,
	price decimal.Decimal,
) (*order.Order, error) {
	return s.execute(ctx, "Service.UpdateOrderItem", orderID, func(_ context.Context, _ unitOfWork, o *order.Order) error {
		return o.UpdateOrderItem(orderItemID, quantity, price)
	})
}

func (s *OrderService) RemoveOrderItem(ctx context.Context, orderID, orderItemID uuid.UUID) (*order.Order, error) {
	return s.execute(ctx, "Service.RemoveOrderItem", orderID, func(_ context.Context, _ unitOfWork, o *order.Order) error {
		return o.RemoveOrderItem(orderItemID)
	})
}

// SetPaymentModel holds the data needed to attach a payment.
type SetPaymentModel struct {
	Amount        decimal.Decimal
	Method        order.PaymentMethod
	TransactionID string
}

// SetPayment attaches a pending payment, which locks the order contents.
func (s *OrderService) SetPayment(ctx context.Context, orderID uuid.UUID, model SetPaymentModel) (order.Payment, error) {
	var payment order.Payment
	_, err := s.execute(ctx, "Service.SetPayment", orderID, func(_ context.Context, _ unitOfWork, o *order.Order) error {
		var err error
		payment, err = o.SetPayment(model.Amount, model.Method, model.TransactionID)

		return err
	})

	return payment, err
}

func (s *OrderService) CompletePayment(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.execute(ctx, "Service.CompletePayment", orderID, func(_ context.Context, _ unitOfWork, o *order.Order) error {
		return o.CompletePayment()
	})
}

func (s *OrderService) FailPayment(ctx context.Context, orderID uuid.UUID, reason string) (*order.Order, error) {
	return s.execute(ctx, "Service.FailPayment", orderID, func(_ context.Context, _ unitOfWork, o *order.Order) error {
		return o.FailPayment(reason)
	})
}

func (s *OrderService) CreateDelivery(ctx context.Context, orderID uuid.UUID) (order.Delivery, error) {
	var delivery order.Delivery
	_, err := s.execute(ctx, "Service.CreateDelivery", orderID, func(_ context.Context, _ unitOfWork, o *order.Order) error {
		var err error
		delivery, err = o.CreateDelivery()

		return err
	})

	return delivery, err
}

// AssignDeliveryPerson reserves the nearest eligible delivery person and
// assigns them in the same transaction, so a failed assignment releases the
// reservation on rollback. A zero estimatedDuration is derived from distance
// and vehicle speed.
func (s *OrderService) AssignDeliveryPerson(
	ctx context.Context,
	orderID uuid.UUID,
	estimatedDuration time.Duration,
) (*matchingsvc.Match, error) {
	var match *matchingsvc.Match
	_, err := s.execute(ctx, "Service.AssignDeliveryPerson", orderID, func(ctx context.Context, work unitOfWork, o *order.Order) error {
		// Surface aggregate errors before reserving anyone.
		delivery, ok := o.Delivery()
		if !ok {
			return order.ErrNoDeliveryCreated
		}
		if delivery.IsAssigned() {
			return order.ErrDeliveryAlreadyAssigned
		}

		var err error
		match, err = s.matcher.SelectBestDeliveryPerson(ctx, work.DeliveryPersonRepository(), o, s.now())
		if err != nil {
			return err
		}

		eta := estimatedDuration
		if eta <= 0 {
			eta = match.EstimatedDuration()
		}

		return o.AssignDelivery(match.DeliveryPerson.ID, eta)
	})
	if err != nil {
		return nil, err
	}

	return match, nil
}

// CompleteDelivery marks the order delivered and makes the delivery person available again.
func (s *OrderService) CompleteDelivery(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.execute(ctx, "Service.CompleteDelivery", orderID, func(ctx context.Context, work unitOfWork, o *order.Order) error {
		if err := o.CompleteDelivery(); err != nil {
			return err
		}

		delivery, _ := o.Delivery()
		if err := work.DeliveryPersonRepository().Release(ctx, *delivery.DeliveryPersonID); err != nil {
			return fmt.Errorf("failed to release delivery person: %w", err)
		}

		return nil
	})
}

// DeleteOrder removes an order that has no payment attached.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.DeleteOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return err
	}
	defer rollback(ctx, work)

	o, err := s.load(ctx, work, orderID)
	if err != nil {
		return err
	}

	if err := o.EnsureDeletable(); err != nil {
		return err
	}

	if err := work.OrderRepository().Delete(ctx, orderID); err != nil {
		if errors.Is(err, iorderrepo.ErrNotFound) {
			return ErrOrderNotFound
		}

		return err
	}

	if err := work.Commit(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Order deleted", "order_id", orderID)

	return nil
}

type command func(ctx context.Context, work unitOfWork, o *order.Order) error

// execute runs cmd against the locked order and commits the aggregate with its events.
func (s *OrderService) execute(
	ctx context.Context,
	spanName string,
	orderID uuid.UUID,
	cmd command,
) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer rollback(ctx, work)

	o, err := s.load(ctx, work, orderID)
	if err != nil {
		return nil, err
	}

	if err := cmd(ctx, work, o); err != nil {
		var businessErr *order.Error
		if errors.As(err, &businessErr) {
			slog.InfoContext(ctx, "Order command rejected", "order_id", orderID, "code", businessErr.Code)
		}

		return nil, err
	}

	if err := s.persist(ctx, work, o); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	return o, nil
}

func (s *OrderService) load(ctx context.Context, work unitOfWork, orderID uuid.UUID) (*order.Order, error) {
	o, err := work.OrderRepository().GetForUpdate(ctx, orderID)
	if errors.Is(err, iorderrepo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	return o, nil
}

// persist saves the aggregate and appends its pending events to the outbox.
func (s *OrderService) persist(ctx context.Context, work unitOfWork, o *order.Order) error {
	if err := work.OrderRepository().Save(ctx, o); err != nil {
		return err
	}

	messages, err := outbox.FromEvents(o.PullEvents())
	if err != nil {
		return fmt.Errorf("failed to build outbox messages: %w", err)
	}

	return work.OutboxRepository().Append(ctx, messages)
}

func rollback(ctx context.Context, work unitOfWork) {
	if err := work.Rollback(context.WithoutCancel(ctx)); err != nil {
		slog.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
	}
}
