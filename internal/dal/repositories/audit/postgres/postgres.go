package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/delivery/internal/dal/postgres"
	"github.com/corray333/backend-labs/delivery/internal/service/models/auditlog"
	"github.com/google/uuid"
)

// AuditRepository implements the order audit trail repository for PostgreSQL.
type AuditRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(conn postgres.Conn) *AuditRepository {
	return &AuditRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveAuditLogs saves audit log entries using squirrel bulk insert.
func (r *AuditRepository) SaveAuditLogs(
	ctx context.Context,
	auditLogs []auditlog.AuditLogOrder,
) error {
	if len(auditLogs) == 0 {
		return nil
	}

	builder := r.sb.
		Insert("order_audit_log").
		Columns(
			"order_id",
			"message_id",
			"event_type",
			"order_status",
			"created_at",
		)

	for _, auditLog := range auditLogs {
		builder = builder.Values(
			auditLog.OrderID,
			auditLog.MessageID,
			auditLog.EventType,
			auditLog.OrderStatus,
			auditLog.CreatedAt,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit logs insert query: %w", err)
	}

	if _, err = r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk insert audit logs: %w", err)
	}

	return nil
}

// ListByOrder returns the trail of one order, oldest first.
func (r *AuditRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]auditlog.AuditLogOrder, error) {
	query, args, err := r.sb.
		Select("id", "order_id", "message_id", "event_type", "order_status", "created_at").
		From("order_audit_log").
		Where("order_id = ?", orderID).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit logs select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var result []auditlog.AuditLogOrder
	for rows.Next() {
		var l auditlog.AuditLogOrder
		if err := rows.Scan(&l.ID, &l.OrderID, &l.MessageID, &l.EventType, &l.OrderStatus, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		result = append(result, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return result, nil
}
