package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the sink publishers append to. The Postgres store writes to the
// transactional outbox so audit rows commit or roll back with the domain
// mutation; the memory store keeps events in process for tests.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxEntry is one unpublished row of the audit outbox, ready for the
// relay to hand to Kafka. Payload is the JSON document the consumers decode;
// EventID becomes the message key so redelivery stays idempotent downstream.
type OutboxEntry struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	Category  EventCategory
	Action    string
	Payload   []byte
	CreatedAt time.Time
}
