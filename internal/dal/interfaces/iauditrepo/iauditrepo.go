package iauditrepo

import (
	"context"

	"github.com/corray333/backend-labs/delivery/internal/service/models/auditlog"
	"github.com/google/uuid"
)

// IAuditRepository is interface for order audit trail repository.
type IAuditRepository interface {
	SaveAuditLogs(ctx context.Context, auditLogs []auditlog.AuditLogOrder) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]auditlog.AuditLogOrder, error)
}
