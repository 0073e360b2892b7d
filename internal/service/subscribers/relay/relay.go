package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/delivery/internal/service/eventbus"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const Name = "broker-relay"

type publisher interface {
	Publish(ctx context.Context, msg rabbitmq.Message) error
}

// Relay forwards domain events to the RabbitMQ exchange, routed by event type.
type Relay struct {
	publisher publisher
}

func New(publisher publisher) *Relay {
	return &Relay{publisher: publisher}
}

// Message is the body published to the broker.
type Message struct {
	MessageID  string          `json:"messageId"`
	Type       string          `json:"type"`
	OrderID    string          `json:"orderId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

func (r *Relay) Name() string { return Name }

func (r *Relay) Handle(ctx context.Context, env eventbus.Envelope) error {
	ctx, span := otel.Tracer("service").Start(ctx, "Relay.Handle")
	defer span.End()

	payload, err := json.Marshal(env.Event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	body, err := json.Marshal(Message{
		MessageID:  env.MessageID.String(),
		Type:       env.Event.Type().String(),
		OrderID:    env.Event.AggregateID().String(),
		OccurredAt: env.Event.OccurredAt(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := amqp.Table{}
	for k, v := range carrier {
		headers[k] = v
	}

	err = r.publisher.Publish(ctx, rabbitmq.Message{
		MessageID:  env.MessageID.String(),
		RoutingKey: env.Event.Type().String(),
		Body:       body,
		Timestamp:  env.Event.OccurredAt(),
		Headers:    headers,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to relay event", "message_id", env.MessageID, "error", err)

		return fmt.Errorf("failed to publish to broker: %w", err)
	}

	return nil
}
