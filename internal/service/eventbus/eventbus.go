package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/delivery/internal/service/models/event"
	"github.com/corray333/backend-labs/delivery/internal/service/models/outbox"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Envelope carries a decoded event together with the id of the outbox message it came from.
type Envelope struct {
	MessageID uuid.UUID
	Event     event.Event
}

// Handler reacts to published events. Name identifies it in the consumer ledger.
type Handler interface {
	Name() string
	Handle(ctx context.Context, env Envelope) error
}

type handlerFunc struct {
	name string
	fn   func(ctx context.Context, env Envelope) error
}

func (h handlerFunc) Name() string { return h.name }

func (h handlerFunc) Handle(ctx context.Context, env Envelope) error { return h.fn(ctx, env) }

// HandlerFunc adapts a function to Handler.
func HandlerFunc(name string, fn func(ctx context.Context, env Envelope) error) Handler {
	return handlerFunc{name: name, fn: fn}
}

// Bus delivers events to every subscriber in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func New() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, h)
}

// Publish runs every handler even when earlier ones fail and joins their errors.
func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	ctx, span := otel.Tracer("service").Start(ctx, "EventBus.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", env.Event.Type().String()),
		attribute.String("outbox.message_id", env.MessageID.String()),
	)

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)

			break
		}
		if err := h.Handle(ctx, env); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
		}
	}

	return errors.Join(errs...)
}

type idempotent struct {
	name  string
	store ioutboxrepo.IOutboxConsumerRepository
	next  Handler
	now   func() time.Time
}

// Idempotent skips messages the named consumer already handled and records
// the message after a successful run. Retried publishes therefore only reach
// handlers that have not succeeded yet.
func Idempotent(store ioutboxrepo.IOutboxConsumerRepository, next Handler) Handler {
	return &idempotent{
		name:  next.Name(),
		store: store,
		next:  next,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (h *idempotent) Name() string { return h.name }

func (h *idempotent) Handle(ctx context.Context, env Envelope) error {
	done, err := h.store.HasConsumed(ctx, env.MessageID, h.name)
	if err != nil {
		return fmt.Errorf("failed to check consumer ledger: %w", err)
	}
	if done {
		slog.DebugContext(ctx, "Message already consumed", "consumer", h.name, "message_id", env.MessageID)

		return nil
	}

	if err := h.next.Handle(ctx, env); err != nil {
		return err
	}

	err = h.store.MarkConsumed(ctx, outbox.OutboxMessageConsumer{
		MessageID: env.MessageID,
		Name:      h.name,
		CreatedAt: h.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to record consumer: %w", err)
	}

	return nil
}
