package outbox

import (
	"time"

	"github.com/corray333/backend-labs/delivery/internal/service/models/event"
	"github.com/google/uuid"
)

// OutboxMessage is a domain event persisted in the same transaction as its aggregate.
// ProcessedAt is nil while the message is pending.
type OutboxMessage struct {
	ID          uuid.UUID
	Type        event.Type
	Payload     []byte
	OccurredAt  time.Time
	ProcessedAt *time.Time
	Error       *string
}

// IsPending reports whether dispatch has not been resolved yet.
func (m OutboxMessage) IsPending() bool {
	return m.ProcessedAt == nil
}

// FromEvent serializes a domain event into a pending message.
func FromEvent(e event.Event) (OutboxMessage, error) {
	payload, err := event.Encode(e)
	if err != nil {
		return OutboxMessage{}, err
	}

	return OutboxMessage{
		ID:         uuid.New(),
		Type:       e.Type(),
		Payload:    payload,
		OccurredAt: e.OccurredAt(),
	}, nil
}

// FromEvents keeps the raise order of events.
func FromEvents(events []event.Event) ([]OutboxMessage, error) {
	messages := make([]OutboxMessage, 0, len(events))
	for _, e := range events {
		msg, err := FromEvent(e)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Decode rebuilds the domain event carried by the message.
func (m OutboxMessage) Decode() (event.Event, error) {
	return event.Decode(m.Type, m.Payload)
}

// ProcessingResult is the resolution of one dispatch attempt cycle.
type ProcessingResult struct {
	MessageID   uuid.UUID
	ProcessedAt time.Time
	Error       *string
}

// OutboxMessageConsumer records that a named consumer handled a message.
type OutboxMessageConsumer struct {
	MessageID uuid.UUID
	Name      string
	CreatedAt time.Time
}
