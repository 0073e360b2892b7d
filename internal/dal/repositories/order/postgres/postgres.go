package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/postgres"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id           uuid.UUID  `db:"id"`
	CustomerId   uuid.UUID  `db:"customer_id"`
	RestaurantId uuid.UUID  `db:"restaurant_id"`
	Street       string     `db:"street"`
	City         string     `db:"city"`
	State        string     `db:"state"`
	Latitude     float64    `db:"latitude"`
	Longitude    float64    `db:"longitude"`
	Status       string     `db:"status"`
	PlacedAt     time.Time  `db:"placed_at"`
	DeliveredAt  *time.Time `db:"delivered_at"`
	IsLocked     bool       `db:"is_locked"`
}

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id         uuid.UUID `db:"id"`
	OrderId    uuid.UUID `db:"order_id"`
	MenuItemId uuid.UUID `db:"menu_item_id"`
	Quantity   int       `db:"quantity"`
	Price      string    `db:"price"`
	Position   int       `db:"position"`
}

// PaymentDal represents payment data access layer model.
type PaymentDal struct {
	Id            uuid.UUID `db:"id"`
	OrderId       uuid.UUID `db:"order_id"`
	Amount        string    `db:"amount"`
	Method        string    `db:"method"`
	TransactionId string    `db:"transaction_id"`
	Status        string    `db:"status"`
}

// DeliveryDal represents delivery data access layer model.
type DeliveryDal struct {
	Id                  uuid.UUID     `db:"id"`
	OrderId             uuid.UUID     `db:"order_id"`
	DeliveryPersonId    uuid.NullUUID `db:"delivery_person_id"`
	PickupTime          *time.Time    `db:"pickup_time"`
	EstimatedDurationMs int64         `db:"estimated_duration_ms"`
	ActualDeliveryTime  *time.Time    `db:"actual_delivery_time"`
	Status              string        `db:"status"`
}

// ToModel converts OrderDal and its owned rows to an order snapshot.
func (o *OrderDal) ToModel(
	items []OrderItemDal,
	payment *PaymentDal,
	delivery *DeliveryDal,
) (order.Snapshot, error) {
	s := order.Snapshot{
		ID:           o.Id,
		CustomerID:   o.CustomerId,
		RestaurantID: o.RestaurantId,
		DeliveryAddress: location.Address{
			Street: o.Street,
			City:   o.City,
			State:  o.State,
			Location: location.Location{
				Latitude:  o.Latitude,
				Longitude: o.Longitude,
			},
		},
		Status:      order.Status(o.Status),
		PlacedAt:    o.PlacedAt,
		DeliveredAt: o.DeliveredAt,
		IsLocked:    o.IsLocked,
		Items:       make([]order.OrderItem, 0, len(items)),
	}

	for _, item := range items {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return order.Snapshot{}, fmt.Errorf("failed to parse price of item %s: %w", item.Id, err)
		}
		s.Items = append(s.Items, order.OrderItem{
			ID:         item.Id,
			OrderID:    item.OrderId,
			MenuItemID: item.MenuItemId,
			Quantity:   item.Quantity,
			Price:      price,
		})
	}

	if payment != nil {
		amount, err := decimal.NewFromString(payment.Amount)
		if err != nil {
			return order.Snapshot{}, fmt.Errorf("failed to parse payment amount: %w", err)
		}
		method, err := order.ParsePaymentMethod(payment.Method)
		if err != nil {
			return order.Snapshot{}, err
		}
		s.Payment = &order.Payment{
			ID:            payment.Id,
			OrderID:       payment.OrderId,
			Amount:        amount,
			Method:        method,
			TransactionID: payment.TransactionId,
			Status:        order.PaymentStatus(payment.Status),
		}
	}

	if delivery != nil {
		d := &order.Delivery{
			ID:                 delivery.Id,
			OrderID:            delivery.OrderId,
			PickupTime:         delivery.PickupTime,
			EstimatedDuration:  time.Duration(delivery.EstimatedDurationMs) * time.Millisecond,
			ActualDeliveryTime: delivery.ActualDeliveryTime,
			Status:             order.DeliveryStatus(delivery.Status),
		}
		if delivery.DeliveryPersonId.Valid {
			id := delivery.DeliveryPersonId.UUID
			d.DeliveryPersonID = &id
		}
		s.Delivery = d
	}

	return s, nil
}

// OrderRepository stores the order aggregate across four tables.
type OrderRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(conn postgres.Conn) *OrderRepository {
	return &OrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Get loads an order with its owned entities.
func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate loads an order and locks its row for the current transaction.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.get(ctx, id, true)
}

func (r *OrderRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*order.Order, error) {
	query := r.sb.
		Select(
			"id",
			"customer_id",
			"restaurant_id",
			"street",
			"city",
			"state",
			"latitude",
			"longitude",
			"status",
			"placed_at",
			"delivered_at",
			"is_locked",
		).
		From("orders").
		Where("id = ?", id)
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var dal OrderDal
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&dal.Id,
		&dal.CustomerId,
		&dal.RestaurantId,
		&dal.Street,
		&dal.City,
		&dal.State,
		&dal.Latitude,
		&dal.Longitude,
		&dal.Status,
		&dal.PlacedAt,
		&dal.DeliveredAt,
		&dal.IsLocked,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, iorderrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := r.queryItems(ctx, id)
	if err != nil {
		return nil, err
	}

	payment, err := r.queryPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	delivery, err := r.queryDelivery(ctx, id)
	if err != nil {
		return nil, err
	}

	snapshot, err := dal.ToModel(items, payment, delivery)
	if err != nil {
		return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
	}

	return order.FromSnapshot(snapshot), nil
}

func (r *OrderRepository) queryItems(ctx context.Context, orderID uuid.UUID) ([]OrderItemDal, error) {
	sql, args, err := r.sb.
		Select("id", "order_id", "menu_item_id", "quantity", "price::text", "position").
		From("order_items").
		Where("order_id = ?", orderID).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var result []OrderItemDal
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.MenuItemId,
			&dal.Quantity,
			&dal.Price,
			&dal.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		result = append(result, dal)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func (r *OrderRepository) queryPayment(ctx context.Context, orderID uuid.UUID) (*PaymentDal, error) {
	sql, args, err := r.sb.
		Select("id", "order_id", "amount::text", "method", "transaction_id", "status").
		From("payments").
		Where("order_id = ?", orderID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var dal PaymentDal
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&dal.Id,
		&dal.OrderId,
		&dal.Amount,
		&dal.Method,
		&dal.TransactionId,
		&dal.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}

	return &dal, nil
}

func (r *OrderRepository) queryDelivery(ctx context.Context, orderID uuid.UUID) (*DeliveryDal, error) {
	sql, args, err := r.sb.
		Select(
			"id",
			"order_id",
			"delivery_person_id",
			"pickup_time",
			"estimated_duration_ms",
			"actual_delivery_time",
			"status",
		).
		From("deliveries").
		Where("order_id = ?", orderID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var dal DeliveryDal
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&dal.Id,
		&dal.OrderId,
		&dal.DeliveryPersonId,
		&dal.PickupTime,
		&dal.EstimatedDurationMs,
		&dal.ActualDeliveryTime,
		&dal.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery: %w", err)
	}

	return &dal, nil
}

// Save upserts the order row, replaces its items and upserts payment and delivery.
// It must run inside a transaction.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	s := o.Snapshot()

	sql, args, err := r.sb.
		Insert("orders").
		Columns(
			"id",
			"customer_id",
			"restaurant_id",
			"street",
			"city",
			"state",
			"latitude",
			"longitude",
			"status",
			"placed_at",
			"delivered_at",
			"is_locked",
			"updated_at",
		).
		Values(
			s.ID,
			s.CustomerID,
			s.RestaurantID,
			s.DeliveryAddress.Street,
			s.DeliveryAddress.City,
			s.DeliveryAddress.State,
			s.DeliveryAddress.Location.Latitude,
			s.DeliveryAddress.Location.Longitude,
			s.Status.String(),
			s.PlacedAt,
			s.DeliveredAt,
			s.IsLocked,
			time.Now().UTC(),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			delivered_at = EXCLUDED.delivered_at,
			is_locked = EXCLUDED.is_locked,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}

	if err := r.replaceItems(ctx, s); err != nil {
		return err
	}

	if s.Payment != nil {
		if err := r.upsertPayment(ctx, s.Payment); err != nil {
			return err
		}
	}

	if s.Delivery != nil {
		if err := r.upsertDelivery(ctx, s.Delivery); err != nil {
			return err
		}
	}

	return nil
}

func (r *OrderRepository) replaceItems(ctx context.Context, s order.Snapshot) error {
	sql, args, err := r.sb.
		Delete("order_items").
		Where("order_id = ?", s.ID).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}

	if len(s.Items) == 0 {
		return nil
	}

	builder := r.sb.
		Insert("order_items").
		Columns("id", "order_id", "menu_item_id", "quantity", "price", "position")
	for i, item := range s.Items {
		builder = builder.Values(
			item.ID,
			s.ID,
			item.MenuItemID,
			item.Quantity,
			item.Price.String(),
			i,
		)
	}

	sql, args, err = builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order items insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}

	return nil
}

func (r *OrderRepository) upsertPayment(ctx context.Context, p *order.Payment) error {
	sql, args, err := r.sb.
		Insert("payments").
		Columns("id", "order_id", "amount", "method", "transaction_id", "status").
		Values(p.ID, p.OrderID, p.Amount.String(), p.Method.String(), p.TransactionID, string(p.Status)).
		Suffix("ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build payment upsert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to upsert payment: %w", err)
	}

	return nil
}

func (r *OrderRepository) upsertDelivery(ctx context.Context, d *order.Delivery) error {
	personID := uuid.NullUUID{}
	if d.DeliveryPersonID != nil {
		personID = uuid.NullUUID{UUID: *d.DeliveryPersonID, Valid: true}
	}

	sql, args, err := r.sb.
		Insert("deliveries").
		Columns(
			"id",
			"order_id",
			"delivery_person_id",
			"pickup_time",
			"estimated_duration_ms",
			"actual_delivery_time",
			"status",
		).
		Values(
			d.ID,
			d.OrderID,
			personID,
			d.PickupTime,
			d.EstimatedDuration.Milliseconds(),
			d.ActualDeliveryTime,
			string(d.Status),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			delivery_person_id = EXCLUDED.delivery_person_id,
			pickup_time = EXCLUDED.pickup_time,
			estimated_duration_ms = EXCLUDED.estimated_duration_ms,
			actual_delivery_time = EXCLUDED.actual_delivery_time,
			status = EXCLUDED.status`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delivery upsert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to upsert delivery: %w", err)
	}

	return nil
}

// Delete removes the order. Items, payment and delivery go with it.
func (r *OrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.sb.
		Delete("orders").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return iorderrepo.ErrNotFound
	}

	return nil
}
