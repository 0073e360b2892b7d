package audittrail

import (
	"context"
	"testing"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/delivery/internal/service/eventbus"
	"github.com/corray333/backend-labs/delivery/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/delivery/internal/service/models/event"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditRepo struct {
	saved []auditlog.AuditLogOrder
}

func (f *fakeAuditRepo) SaveAuditLogs(_ context.Context, logs []auditlog.AuditLogOrder) error {
	f.saved = append(f.saved, logs...)

	return nil
}

func (f *fakeAuditRepo) ListByOrder(_ context.Context, id uuid.UUID) ([]auditlog.AuditLogOrder, error) {
	var out []auditlog.AuditLogOrder
	for _, l := range f.saved {
		if l.OrderID == id {
			out = append(out, l)
		}
	}

	return out, nil
}

type fakeOrders map[uuid.UUID]*order.Order

func (f fakeOrders) Get(_ context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := f[id]
	if !ok {
		return nil, iorderrepo.ErrNotFound
	}

	return o, nil
}

func TestAuditTrailRecordsImpliedStatus(t *testing.T) {
	repo := &fakeAuditRepo{}
	trail := New(repo, fakeOrders{})

	env := eventbus.Envelope{
		MessageID: uuid.New(),
		Event:     event.DeliveryAssigned{Base: event.Base{OrderID: uuid.New(), At: time.Now().UTC()}},
	}
	require.NoError(t, trail.Handle(context.Background(), env))

	require.Len(t, repo.saved, 1)
	assert.Equal(t, "OnTheWay", repo.saved[0].OrderStatus)
	assert.Equal(t, "order.delivery_assigned", repo.saved[0].EventType)
	assert.Equal(t, env.MessageID, repo.saved[0].MessageID)
}

func TestAuditTrailLoadsStatusForOtherEvents(t *testing.T) {
	o := order.New(uuid.New(), uuid.New(), location.Address{City: "Kazan"})
	repo := &fakeAuditRepo{}
	trail := New(repo, fakeOrders{o.ID(): o})

	env := eventbus.Envelope{
		MessageID: uuid.New(),
		Event:     event.OrderItemAdded{Base: event.Base{OrderID: o.ID(), At: time.Now().UTC()}},
	}
	require.NoError(t, trail.Handle(context.Background(), env))

	require.Len(t, repo.saved, 1)
	assert.Equal(t, "Pending", repo.saved[0].OrderStatus)
}

func TestAuditTrailMarksDeletedOrders(t *testing.T) {
	repo := &fakeAuditRepo{}
	trail := New(repo, fakeOrders{})

	env := eventbus.Envelope{
		MessageID: uuid.New(),
		Event:     event.OrderItemRemoved{Base: event.Base{OrderID: uuid.New(), At: time.Now().UTC()}},
	}
	require.NoError(t, trail.Handle(context.Background(), env))

	require.Len(t, repo.saved, 1)
	assert.Equal(t, StatusDeleted, repo.saved[0].OrderStatus)
}
