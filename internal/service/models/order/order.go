package order

import (
	"slices"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/event"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the workflow status of an order.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusOnTheWay  Status = "OnTheWay"
	StatusDelivered Status = "Delivered"
)

func (s Status) String() string {
	return string(s)
}

var now = func() time.Time {
	return time.Now().UTC()
}

// Order is the aggregate root owning items, payment and delivery.
// All mutation goes through its methods; each successful one raises an event.
type Order struct {
	id              uuid.UUID
	customerID      uuid.UUID
	restaurantID    uuid.UUID
	deliveryAddress location.Address
	status          Status
	placedAt        time.Time
	deliveredAt     *time.Time
	items           []OrderItem
	payment         *Payment
	delivery        *Delivery

	events []event.Event
}

// New places a pending order.
func New(customerID, restaurantID uuid.UUID, address location.Address) *Order {
	o := &Order{
		id:              uuid.New(),
		customerID:      customerID,
		restaurantID:    restaurantID,
		deliveryAddress: address,
		status:          StatusPending,
		placedAt:        now(),
	}

	o.raise(event.OrderCreated{
		Base:         o.base(),
		CustomerID:   customerID,
		RestaurantID: restaurantID,
	})

	return o
}

func (o *Order) ID() uuid.UUID                     { return o.id }
func (o *Order) CustomerID() uuid.UUID             { return o.customerID }
func (o *Order) RestaurantID() uuid.UUID           { return o.restaurantID }
func (o *Order) DeliveryAddress() location.Address { return o.deliveryAddress }
func (o *Order) Status() Status                    { return o.status }
func (o *Order) PlacedAt() time.Time               { return o.placedAt }

func (o *Order) DeliveredAt() *time.Time {
	if o.deliveredAt == nil {
		return nil
	}
	t := *o.deliveredAt

	return &t
}

// Items returns a copy of the order items in insertion order.
func (o *Order) Items() []OrderItem {
	return slices.Clone(o.items)
}

// Payment returns a copy of the payment, if any.
func (o *Order) Payment() (Payment, bool) {
	if o.payment == nil {
		return Payment{}, false
	}

	return *o.payment, true
}

// Delivery returns a copy of the delivery, if any.
func (o *Order) Delivery() (Delivery, bool) {
	if o.delivery == nil {
		return Delivery{}, false
	}

	return *o.delivery, true
}

// IsLocked reports whether a payment froze the order contents.
func (o *Order) IsLocked() bool {
	return o.payment != nil
}

// Subtotal sums the item line totals.
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.items {
		total = total.Add(item.LineTotal())
	}

	return total
}

// AddOrderItem appends an item. Quantity and price are validated upstream.
func (o *Order) AddOrderItem(menuItemID uuid.UUID, quantity int, price decimal.Decimal) (OrderItem, error) {
	if o.IsLocked() {
		return OrderItem{}, ErrOrderLocked
	}

	item := OrderItem{
		ID:         uuid.New(),
		OrderID:    o.id,
		MenuItemID: menuItemID,
		Quantity:   quantity,
		Price:      price,
	}
	o.items = append(o.items, item)

	o.raise(event.OrderItemAdded{
		Base:        o.base(),
		OrderItemID: item.ID,
		MenuItemID:  menuItemID,
		Quantity:    quantity,
		Price:       price,
	})

	return item, nil
}

// UpdateOrderItem changes quantity and price of an existing item.
func (o *Order) UpdateOrderItem(orderItemID uuid.UUID, quantity int, price decimal.Decimal) error {
	if o.IsLocked() {
		return ErrOrderLocked
	}

	idx := o.itemIndex(orderItemID)
	if idx < 0 {
		return ErrOrderItemNotFound
	}

	o.items[idx].Quantity = quantity
	o.items[idx].Price = price

	o.raise(event.OrderItemUpdated{
		Base:        o.base(),
		OrderItemID: orderItemID,
		Quantity:    quantity,
		Price:       price,
	})

	return nil
}

// RemoveOrderItem drops an item from the order.
func (o *Order) RemoveOrderItem(orderItemID uuid.UUID) error {
	if o.IsLocked() {
		return ErrOrderLocked
	}

	idx := o.itemIndex(orderItemID)
	if idx < 0 {
		return ErrOrderItemNotFound
	}

	o.items = slices.Delete(o.items, idx, idx+1)

	o.raise(event.OrderItemRemoved{
		Base:        o.base(),
		OrderItemID: orderItemID,
	})

	return nil
}

// SetPayment attaches the one and only payment and locks the order.
func (o *Order) SetPayment(amount decimal.Decimal, method PaymentMethod, transactionID string) (Payment, error) {
	if o.payment != nil {
		return Payment{}, ErrPaymentAlreadySet
	}

	o.payment = &Payment{
		ID:            uuid.New(),
		OrderID:       o.id,
		Amount:        amount,
		Method:        method,
		TransactionID: transactionID,
		Status:        PaymentStatusPending,
	}

	o.raise(event.PaymentSet{
		Base:          o.base(),
		PaymentID:     o.payment.ID,
		Amount:        amount,
		Method:        method.String(),
		TransactionID: transactionID,
	})

	return *o.payment, nil
}

// CompletePayment moves a pending payment to Completed.
// Completing twice is an error, not a no-op.
func (o *Order) CompletePayment() error {
	if err := o.ensurePaymentPending(); err != nil {
		return err
	}

	o.payment.Status = PaymentStatusCompleted

	o.raise(event.PaymentCompleted{
		Base:      o.base(),
		PaymentID: o.payment.ID,
	})

	return nil
}

// FailPayment moves a pending payment to Failed. The order stays locked.
func (o *Order) FailPayment(reason string) error {
	if err := o.ensurePaymentPending(); err != nil {
		return err
	}

	o.payment.Status = PaymentStatusFailed

	o.raise(event.PaymentFailed{
		Base:      o.base(),
		PaymentID: o.payment.ID,
		Reason:    reason,
	})

	return nil
}

func (o *Order) ensurePaymentPending() error {
	if o.payment == nil {
		return ErrNoPaymentSet
	}

	switch o.payment.Status {
	case PaymentStatusCompleted:
		return ErrPaymentAlreadyCompleted
	case PaymentStatusFailed:
		return ErrPaymentAlreadyFailed
	default:
		return nil
	}
}

// CreateDelivery opens the delivery once payment exists and has not failed.
func (o *Order) CreateDelivery() (Delivery, error) {
	if o.payment == nil {
		return Delivery{}, ErrPaymentNotSet
	}
	if o.payment.Status == PaymentStatusFailed {
		return Delivery{}, ErrPaymentFailed
	}
	if o.delivery != nil {
		return Delivery{}, ErrDeliveryAlreadyExists
	}

	o.delivery = &Delivery{
		ID:      uuid.New(),
		OrderID: o.id,
		Status:  DeliveryStatusPending,
	}

	o.raise(event.DeliveryCreated{
		Base:       o.base(),
		DeliveryID: o.delivery.ID,
	})

	return *o.delivery, nil
}

// AssignDelivery hands the delivery to a delivery person and puts the order on the way.
func (o *Order) AssignDelivery(deliveryPersonID uuid.UUID, estimatedDuration time.Duration) error {
	if o.delivery == nil {
		return ErrNoDeliveryCreated
	}
	if o.delivery.IsAssigned() {
		return ErrDeliveryAlreadyAssigned
	}

	pickup := now()
	personID := deliveryPersonID
	o.delivery.DeliveryPersonID = &personID
	o.delivery.PickupTime = &pickup
	o.delivery.EstimatedDuration = estimatedDuration
	o.delivery.Status = DeliveryStatusAssigned
	o.status = StatusOnTheWay

	o.raise(event.DeliveryAssigned{
		Base:              o.base(),
		DeliveryID:        o.delivery.ID,
		DeliveryPersonID:  deliveryPersonID,
		EstimatedDuration: estimatedDuration,
	})

	return nil
}

// CompleteDelivery is the terminal transition.
func (o *Order) CompleteDelivery() error {
	if !o.delivery.IsAssigned() {
		return ErrNoDeliveryAssigned
	}
	if o.status == StatusDelivered {
		return ErrOrderAlreadyDelivered
	}

	at := now()
	deliveredAt := at
	o.delivery.ActualDeliveryTime = &at
	o.delivery.Status = DeliveryStatusDelivered
	o.status = StatusDelivered
	o.deliveredAt = &deliveredAt

	o.raise(event.OrderDelivered{
		Base:        o.base(),
		DeliveryID:  o.delivery.ID,
		DeliveredAt: at,
	})

	return nil
}

// EnsureDeletable guards the external delete command.
func (o *Order) EnsureDeletable() error {
	if o.IsLocked() {
		return ErrOrderIsLocked
	}

	return nil
}

// Events returns raised events that have not been pulled yet.
func (o *Order) Events() []event.Event {
	return slices.Clone(o.events)
}

// PullEvents returns raised events in raise order and forgets them.
func (o *Order) PullEvents() []event.Event {
	events := o.events
	o.events = nil

	return events
}

func (o *Order) itemIndex(orderItemID uuid.UUID) int {
	return slices.IndexFunc(o.items, func(item OrderItem) bool {
		return item.ID == orderItemID
	})
}

func (o *Order) base() event.Base {
	return event.Base{OrderID: o.id, At: now()}
}

func (o *Order) raise(e event.Event) {
	o.events = append(o.events, e)
}
