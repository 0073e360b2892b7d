package ordersvc

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ideliverypersonrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/delivery/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/corray333/backend-labs/delivery/internal/service/models/outbox"
	"github.com/google/uuid"
)

// memDB is an in-memory stand-in for Postgres. A transaction works on a
// clone that replaces the committed state on Commit.
type memDB struct {
	orders    map[uuid.UUID]order.Snapshot
	persons   map[uuid.UUID]deliveryperson.DeliveryPerson
	outbox    []outbox.OutboxMessage
	audit     []auditlog.AuditLogOrder
	appendErr error
}

func newMemDB() *memDB {
	return &memDB{
		orders:  map[uuid.UUID]order.Snapshot{},
		persons: map[uuid.UUID]deliveryperson.DeliveryPerson{},
	}
}

func (d *memDB) clone() *memDB {
	return &memDB{
		orders:    maps.Clone(d.orders),
		persons:   maps.Clone(d.persons),
		outbox:    slices.Clone(d.outbox),
		audit:     slices.Clone(d.audit),
		appendErr: d.appendErr,
	}
}

type fakeUOW struct {
	root *memDB
	tx   *memDB
}

func (u *fakeUOW) current() *memDB {
	if u.tx != nil {
		return u.tx
	}

	return u.root
}

func (u *fakeUOW) Begin(context.Context) error {
	if u.tx != nil {
		return errors.New("transaction already started")
	}
	u.tx = u.root.clone()

	return nil
}

func (u *fakeUOW) Commit(context.Context) error {
	if u.tx == nil {
		return nil
	}
	*u.root = *u.tx
	u.tx = nil

	return nil
}

func (u *fakeUOW) Rollback(context.Context) error {
	u.tx = nil

	return nil
}

func (u *fakeUOW) OrderRepository() iorderrepo.IOrderRepository {
	return orderRepo{db: u.current()}
}

func (u *fakeUOW) DeliveryPersonRepository() ideliverypersonrepo.IDeliveryPersonRepository {
	return personRepo{db: u.current()}
}

func (u *fakeUOW) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return outboxRepo{db: u.current()}
}

func (u *fakeUOW) AuditRepository() iauditrepo.IAuditRepository {
	return auditRepo{db: u.current()}
}

type orderRepo struct{ db *memDB }

func (r orderRepo) Get(_ context.Context, id uuid.UUID) (*order.Order, error) {
	s, ok := r.db.orders[id]
	if !ok {
		return nil, iorderrepo.ErrNotFound
	}

	return order.FromSnapshot(s), nil
}

func (r orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.Get(ctx, id)
}

func (r orderRepo) Save(_ context.Context, o *order.Order) error {
	r.db.orders[o.ID()] = o.Snapshot()

	return nil
}

func (r orderRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.db.orders[id]; !ok {
		return iorderrepo.ErrNotFound
	}
	delete(r.db.orders, id)

	return nil
}

type personRepo struct{ db *memDB }

func (r personRepo) Insert(_ context.Context, p deliveryperson.DeliveryPerson) error {
	r.db.persons[p.ID] = p

	return nil
}

func (r personRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*deliveryperson.DeliveryPerson, error) {
	p, ok := r.db.persons[id]
	if !ok {
		return nil, ideliverypersonrepo.ErrNotFound
	}

	return &p, nil
}

func (r personRepo) ListAll(context.Context) ([]deliveryperson.DeliveryPerson, error) {
	out := slices.Collect(maps.Values(r.db.persons))
	slices.SortFunc(out, func(a, b deliveryperson.DeliveryPerson) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return out, nil
}

func (r personRepo) Reserve(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := r.db.persons[id]
	if !ok || !p.IsAvailable {
		return false, nil
	}
	p.IsAvailable = false
	r.db.persons[id] = p

	return true, nil
}

func (r personRepo) Release(_ context.Context, id uuid.UUID) error {
	if p, ok := r.db.persons[id]; ok {
		p.IsAvailable = true
		r.db.persons[id] = p
	}

	return nil
}

func (r personRepo) InsertAvailability(_ context.Context, a deliveryperson.Availability) error {
	p := r.db.persons[a.DeliveryPersonID]
	p.Availabilities = append(slices.Clone(p.Availabilities), a)
	r.db.persons[a.DeliveryPersonID] = p

	return nil
}

func (r personRepo) HasOverlappingAvailability(_ context.Context, id uuid.UUID, start, end time.Time) (bool, error) {
	candidate := deliveryperson.Availability{StartTime: start, EndTime: end}
	for _, a := range r.db.persons[id].Availabilities {
		if a.Overlaps(candidate) {
			return true, nil
		}
	}

	return false, nil
}

type outboxRepo struct{ db *memDB }

func (r outboxRepo) Append(_ context.Context, messages []outbox.OutboxMessage) error {
	if r.db.appendErr != nil {
		return r.db.appendErr
	}
	r.db.outbox = append(r.db.outbox, messages...)

	return nil
}

func (r outboxRepo) GetPendingMessages(_ context.Context, limit int) ([]outbox.OutboxMessage, error) {
	var out []outbox.OutboxMessage
	for _, m := range r.db.outbox {
		if m.IsPending() && len(out) < limit {
			out = append(out, m)
		}
	}

	return out, nil
}

func (r outboxRepo) MarkProcessed(context.Context, []outbox.ProcessingResult) error {
	return nil
}

type auditRepo struct{ db *memDB }

func (r auditRepo) SaveAuditLogs(_ context.Context, logs []auditlog.AuditLogOrder) error {
	r.db.audit = append(r.db.audit, logs...)

	return nil
}

func (r auditRepo) ListByOrder(_ context.Context, id uuid.UUID) ([]auditlog.AuditLogOrder, error) {
	var out []auditlog.AuditLogOrder
	for _, l := range r.db.audit {
		if l.OrderID == id {
			out = append(out, l)
		}
	}

	return out, nil
}
