package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/delivery/internal/dal/postgres"
	"github.com/corray333/backend-labs/delivery/internal/service/models/event"
	"github.com/corray333/backend-labs/delivery/internal/service/models/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OutboxRepository implements the outbox repository for PostgreSQL.
type OutboxRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewOutboxRepository creates a new outbox repository.
func NewOutboxRepository(conn postgres.Conn) *OutboxRepository {
	return &OutboxRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Append adds messages to the outbox with one multi-row insert.
// seq is assigned in VALUES order, so messages sharing occurred_at keep their raise order.
func (r *OutboxRepository) Append(ctx context.Context, messages []outbox.OutboxMessage) error {
	if len(messages) == 0 {
		return nil
	}

	builder := r.sb.
		Insert("outbox_messages").
		Columns("id", "type", "payload", "occurred_at")

	for _, msg := range messages {
		builder = builder.Values(msg.ID, string(msg.Type), string(msg.Payload), msg.OccurredAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert outbox messages: %w", err)
	}

	return nil
}

// GetPendingMessages retrieves unprocessed messages, oldest first.
func (r *OutboxRepository) GetPendingMessages(
	ctx context.Context,
	limit int,
) ([]outbox.OutboxMessage, error) {
	query, args, err := r.sb.
		Select("id", "type", "payload::text", "occurred_at").
		From("outbox_messages").
		Where("processed_at IS NULL").
		OrderBy("occurred_at ASC", "seq ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []outbox.OutboxMessage
	for rows.Next() {
		var (
			msg     outbox.OutboxMessage
			typ     string
			payload string
		)
		if err := rows.Scan(&msg.ID, &typ, &payload, &msg.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		msg.Type = event.Type(typ)
		msg.Payload = []byte(payload)
		msg.OccurredAt = msg.OccurredAt.UTC()
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}

	return messages, nil
}

// MarkProcessed resolves messages in a single round trip.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, results []outbox.ProcessingResult) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, res := range results {
		query, args, err := r.sb.
			Update("outbox_messages").
			Set("processed_at", res.ProcessedAt).
			Set("error", res.Error).
			Where("id = ?", res.MessageID).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update query: %w", err)
		}
		batch.Queue(query, args...)
	}

	br := r.conn.SendBatch(ctx, batch)
	var errs []error
	for range results {
		if _, err := br.Exec(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := br.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to mark outbox messages processed: %w", err)
	}

	return nil
}

// HasConsumed reports whether the named consumer already handled the message.
func (r *OutboxRepository) HasConsumed(ctx context.Context, messageID uuid.UUID, name string) (bool, error) {
	query, args, err := r.sb.
		Select("1").
		From("outbox_message_consumers").
		Where("message_id = ?", messageID).
		Where("name = ?", name).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build select query: %w", err)
	}

	var exists bool
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query outbox consumer: %w", err)
	}

	return exists, nil
}

// MarkConsumed records the consumer. Repeated calls are no-ops.
func (r *OutboxRepository) MarkConsumed(ctx context.Context, consumer outbox.OutboxMessageConsumer) error {
	query, args, err := r.sb.
		Insert("outbox_message_consumers").
		Columns("message_id", "name", "created_at").
		Values(consumer.MessageID, consumer.Name, consumer.CreatedAt).
		Suffix("ON CONFLICT (message_id, name) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert outbox consumer: %w", err)
	}

	return nil
}
