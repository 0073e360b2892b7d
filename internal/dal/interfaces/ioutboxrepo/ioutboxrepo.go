package ioutboxrepo

import (
	"context"

	"github.com/corray333/backend-labs/delivery/internal/service/models/outbox"
	"github.com/google/uuid"
)

// IOutboxRepository defines the interface for outbox operations.
type IOutboxRepository interface {
	// Append stores messages in the caller's transaction, keeping their order
	Append(ctx context.Context, messages []outbox.OutboxMessage) error

	// GetPendingMessages retrieves unprocessed messages, oldest first
	GetPendingMessages(ctx context.Context, limit int) ([]outbox.OutboxMessage, error)

	// MarkProcessed writes all results in one batch
	MarkProcessed(ctx context.Context, results []outbox.ProcessingResult) error
}

// IOutboxConsumerRepository tracks which named consumers handled which messages.
type IOutboxConsumerRepository interface {
	HasConsumed(ctx context.Context, messageID uuid.UUID, name string) (bool, error)
	MarkConsumed(ctx context.Context, consumer outbox.OutboxMessageConsumer) error
}
