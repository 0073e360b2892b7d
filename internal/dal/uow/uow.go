package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ideliverypersonrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/postgres"
	auditrepo "github.com/corray333/backend-labs/delivery/internal/dal/repositories/audit/postgres"
	deliverypersonrepo "github.com/corray333/backend-labs/delivery/internal/dal/repositories/deliveryperson/postgres"
	orderrepo "github.com/corray333/backend-labs/delivery/internal/dal/repositories/order/postgres"
	outboxrepo "github.com/corray333/backend-labs/delivery/internal/dal/repositories/outbox/postgres"
	"github.com/jackc/pgx/v5"
)

// UnitOfWork groups repositories behind one transaction.
// Before Begin the repositories run on the pool.
type UnitOfWork struct {
	client             *postgres.Client
	tx                 pgx.Tx
	orderRepo          *orderrepo.OrderRepository
	deliveryPersonRepo *deliverypersonrepo.DeliveryPersonRepository
	outboxRepo         *outboxrepo.OutboxRepository
	auditRepo          *auditrepo.AuditRepository
}

func NewUnitOfWork(client *postgres.Client) *UnitOfWork {
	u := &UnitOfWork{client: client}
	u.bind(client.Pool())

	return u
}

func (u *UnitOfWork) bind(conn postgres.Conn) {
	u.orderRepo = orderrepo.NewOrderRepository(conn)
	u.deliveryPersonRepo = deliverypersonrepo.NewDeliveryPersonRepository(conn)
	u.outboxRepo = outboxrepo.NewOutboxRepository(conn)
	u.auditRepo = auditrepo.NewAuditRepository(conn)
}

func (u *UnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *UnitOfWork) DeliveryPersonRepository() ideliverypersonrepo.IDeliveryPersonRepository {
	return u.deliveryPersonRepo
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *UnitOfWork) OutboxConsumerRepository() ioutboxrepo.IOutboxConsumerRepository {
	return u.outboxRepo
}

func (u *UnitOfWork) AuditRepository() iauditrepo.IAuditRepository {
	return u.auditRepo
}

// Begin opens a transaction and rebinds every repository to it.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return errors.New("transaction already started")
	}

	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Commit(ctx)
	u.reset()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Rollback is safe to defer after Commit.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(ctx)
	u.reset()
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

func (u *UnitOfWork) reset() {
	u.tx = nil
	u.bind(u.client.Pool())
}
