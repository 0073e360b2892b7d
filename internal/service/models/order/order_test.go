package order

import (
	"testing"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/event"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()

	return New(uuid.New(), uuid.New(), location.Address{
		Street:   "Nevsky 1",
		City:     "Saint Petersburg",
		State:    "SPB",
		Location: location.Location{Latitude: 59.9343, Longitude: 30.3351},
	})
}

func paidOrder(t *testing.T) *Order {
	t.Helper()

	o := newTestOrder(t)
	_, err := o.SetPayment(decimal.NewFromInt(10), PaymentMethodCard, "txn1")
	require.NoError(t, err)

	return o
}

func eventTypes(events []event.Event) []event.Type {
	types := make([]event.Type, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type())
	}

	return types
}

func TestNew(t *testing.T) {
	o := newTestOrder(t)

	assert.NotEqual(t, uuid.Nil, o.ID())
	assert.Equal(t, StatusPending, o.Status())
	assert.False(t, o.PlacedAt().IsZero())
	assert.Nil(t, o.DeliveredAt())
	assert.False(t, o.IsLocked())
	assert.Equal(t, []event.Type{event.TypeOrderCreated}, eventTypes(o.Events()))
}

func TestFullLifecycle(t *testing.T) {
	o := newTestOrder(t)
	agentID := uuid.New()

	_, err := o.SetPayment(decimal.NewFromInt(10), PaymentMethodCard, "txn1")
	require.NoError(t, err)
	_, err = o.CreateDelivery()
	require.NoError(t, err)
	require.NoError(t, o.AssignDelivery(agentID, time.Hour))
	assert.Equal(t, StatusOnTheWay, o.Status())
	require.NoError(t, o.CompleteDelivery())

	assert.Equal(t, StatusDelivered, o.Status())
	require.NotNil(t, o.DeliveredAt())

	d, ok := o.Delivery()
	require.True(t, ok)
	assert.Equal(t, DeliveryStatusDelivered, d.Status)
	require.NotNil(t, d.DeliveryPersonID)
	assert.Equal(t, agentID, *d.DeliveryPersonID)
	assert.Equal(t, time.Hour, d.EstimatedDuration)
	assert.NotNil(t, d.PickupTime)
	assert.NotNil(t, d.ActualDeliveryTime)

	assert.Equal(t, []event.Type{
		event.TypeOrderCreated,
		event.TypePaymentSet,
		event.TypeDeliveryCreated,
		event.TypeDeliveryAssigned,
		event.TypeOrderDelivered,
	}, eventTypes(o.PullEvents()))
	assert.Empty(t, o.Events())
}

func TestLockedOrderRefusesItemMutation(t *testing.T) {
	o := newTestOrder(t)
	item, err := o.AddOrderItem(uuid.New(), 2, decimal.RequireFromString("4.50"))
	require.NoError(t, err)

	_, err = o.SetPayment(decimal.NewFromInt(9), PaymentMethodCash, "txn-cash")
	require.NoError(t, err)
	assert.True(t, o.IsLocked())
	o.PullEvents()

	_, err = o.AddOrderItem(uuid.New(), 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrOrderLocked)
	assert.ErrorIs(t, o.UpdateOrderItem(item.ID, 5, decimal.NewFromInt(1)), ErrOrderLocked)
	assert.ErrorIs(t, o.RemoveOrderItem(item.ID), ErrOrderLocked)
	assert.ErrorIs(t, o.RemoveOrderItem(uuid.New()), ErrOrderLocked)
	assert.ErrorIs(t, o.EnsureDeletable(), ErrOrderIsLocked)

	assert.Len(t, o.Items(), 1)
	assert.Empty(t, o.Events())
}

func TestItemMutation(t *testing.T) {
	o := newTestOrder(t)
	first, err := o.AddOrderItem(uuid.New(), 1, decimal.RequireFromString("3.20"))
	require.NoError(t, err)
	second, err := o.AddOrderItem(uuid.New(), 2, decimal.RequireFromString("1.15"))
	require.NoError(t, err)

	assert.True(t, o.Subtotal().Equal(decimal.RequireFromString("5.50")))

	require.NoError(t, o.UpdateOrderItem(first.ID, 3, decimal.RequireFromString("3.00")))
	assert.ErrorIs(t, o.UpdateOrderItem(uuid.New(), 1, decimal.NewFromInt(1)), ErrOrderItemNotFound)
	require.NoError(t, o.RemoveOrderItem(second.ID))
	assert.ErrorIs(t, o.RemoveOrderItem(second.ID), ErrOrderItemNotFound)

	items := o.Items()
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.True(t, o.Subtotal().Equal(decimal.NewFromInt(9)))
	assert.NoError(t, o.EnsureDeletable())

	assert.Equal(t, []event.Type{
		event.TypeOrderCreated,
		event.TypeOrderItemAdded,
		event.TypeOrderItemAdded,
		event.TypeOrderItemUpdated,
		event.TypeOrderItemRemoved,
	}, eventTypes(o.Events()))
}

func TestItemsReturnsCopy(t *testing.T) {
	o := newTestOrder(t)
	_, err := o.AddOrderItem(uuid.New(), 1, decimal.NewFromInt(2))
	require.NoError(t, err)

	items := o.Items()
	items[0].Quantity = 100

	assert.Equal(t, 1, o.Items()[0].Quantity)
}

func TestPaymentTransitions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) *Order
		act     func(o *Order) error
		wantErr error
		want    PaymentStatus
	}{
		{
			name:    "complete without payment",
			setup:   newTestOrder,
			act:     (*Order).CompletePayment,
			wantErr: ErrNoPaymentSet,
		},
		{
			name:  "complete pending payment",
			setup: paidOrder,
			act:   (*Order).CompletePayment,
			want:  PaymentStatusCompleted,
		},
		{
			name: "complete twice",
			setup: func(t *testing.T) *Order {
				o := paidOrder(t)
				require.NoError(t, o.CompletePayment())

				return o
			},
			act:     (*Order).CompletePayment,
			wantErr: ErrPaymentAlreadyCompleted,
			want:    PaymentStatusCompleted,
		},
		{
			name:  "fail pending payment",
			setup: paidOrder,
			act: func(o *Order) error {
				return o.FailPayment("card declined")
			},
			want: PaymentStatusFailed,
		},
		{
			name: "complete failed payment",
			setup: func(t *testing.T) *Order {
				o := paidOrder(t)
				require.NoError(t, o.FailPayment("card declined"))

				return o
			},
			act:     (*Order).CompletePayment,
			wantErr: ErrPaymentAlreadyFailed,
			want:    PaymentStatusFailed,
		},
		{
			name: "fail completed payment",
			setup: func(t *testing.T) *Order {
				o := paidOrder(t)
				require.NoError(t, o.CompletePayment())

				return o
			},
			act: func(o *Order) error {
				return o.FailPayment("late decline")
			},
			wantErr: ErrPaymentAlreadyCompleted,
			want:    PaymentStatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.setup(t)

			err := tt.act(o)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			if p, ok := o.Payment(); ok {
				assert.Equal(t, tt.want, p.Status)
			}
		})
	}
}

func TestSetPaymentTwice(t *testing.T) {
	o := paidOrder(t)
	first, _ := o.Payment()

	_, err := o.SetPayment(decimal.NewFromInt(99), PaymentMethodWallet, "txn2")
	assert.ErrorIs(t, err, ErrPaymentAlreadySet)

	current, _ := o.Payment()
	assert.Equal(t, first, current)
}

func TestDeliveryGuards(t *testing.T) {
	t.Run("create delivery before payment", func(t *testing.T) {
		o := newTestOrder(t)
		_, err := o.CreateDelivery()
		assert.ErrorIs(t, err, ErrPaymentNotSet)
	})

	t.Run("create delivery after failed payment", func(t *testing.T) {
		o := paidOrder(t)
		require.NoError(t, o.FailPayment("card declined"))
		o.PullEvents()

		_, err := o.CreateDelivery()
		assert.ErrorIs(t, err, ErrPaymentFailed)

		_, ok := o.Delivery()
		assert.False(t, ok)
		assert.Empty(t, o.Events())
		assert.ErrorIs(t, o.AssignDelivery(uuid.New(), time.Hour), ErrNoDeliveryCreated)
		assert.Equal(t, StatusPending, o.Status())
	})

	t.Run("create delivery while payment pending", func(t *testing.T) {
		o := paidOrder(t)
		_, err := o.CreateDelivery()
		assert.NoError(t, err)
	})

	t.Run("create delivery twice", func(t *testing.T) {
		o := paidOrder(t)
		first, err := o.CreateDelivery()
		require.NoError(t, err)

		_, err = o.CreateDelivery()
		assert.ErrorIs(t, err, ErrDeliveryAlreadyExists)

		current, _ := o.Delivery()
		assert.Equal(t, first.ID, current.ID)
	})

	t.Run("assign without delivery", func(t *testing.T) {
		o := paidOrder(t)
		assert.ErrorIs(t, o.AssignDelivery(uuid.New(), time.Hour), ErrNoDeliveryCreated)
		assert.Equal(t, StatusPending, o.Status())
	})

	t.Run("assign twice", func(t *testing.T) {
		o := paidOrder(t)
		_, err := o.CreateDelivery()
		require.NoError(t, err)
		first := uuid.New()
		require.NoError(t, o.AssignDelivery(first, time.Hour))

		assert.ErrorIs(t, o.AssignDelivery(uuid.New(), time.Minute), ErrDeliveryAlreadyAssigned)

		d, _ := o.Delivery()
		assert.Equal(t, first, *d.DeliveryPersonID)
	})

	t.Run("complete without delivery", func(t *testing.T) {
		o := newTestOrder(t)
		assert.ErrorIs(t, o.CompleteDelivery(), ErrNoDeliveryAssigned)
	})

	t.Run("complete before assignment", func(t *testing.T) {
		o := paidOrder(t)
		_, err := o.CreateDelivery()
		require.NoError(t, err)

		assert.ErrorIs(t, o.CompleteDelivery(), ErrNoDeliveryAssigned)
		assert.Nil(t, o.DeliveredAt())
	})

	t.Run("complete twice", func(t *testing.T) {
		o := paidOrder(t)
		_, err := o.CreateDelivery()
		require.NoError(t, err)
		require.NoError(t, o.AssignDelivery(uuid.New(), time.Hour))
		require.NoError(t, o.CompleteDelivery())
		deliveredAt := o.DeliveredAt()

		assert.ErrorIs(t, o.CompleteDelivery(), ErrOrderAlreadyDelivered)
		assert.Equal(t, deliveredAt, o.DeliveredAt())
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	o := paidOrder(t)
	_, err := o.CreateDelivery()
	require.NoError(t, err)

	restored := FromSnapshot(o.Snapshot())

	assert.Equal(t, o.Snapshot(), restored.Snapshot())
	assert.True(t, restored.IsLocked())
	assert.Empty(t, restored.Events())
	assert.ErrorIs(t, restored.CompleteDelivery(), ErrNoDeliveryAssigned)
}

func TestErrorCodesAreStable(t *testing.T) {
	assert.Equal(t, "Order.Locked: order items cannot change once a payment is set", ErrOrderLocked.Error())
	assert.Equal(t, "Order.NoDeliveryAssigned", ErrNoDeliveryAssigned.Code)
	assert.Equal(t, "Order.PaymentFailed", ErrPaymentFailed.Code)
}
