// Package notify delivers domain events to interested parties. Delivery is
// fire-and-forget: callers log publish failures and carry on.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType is also the routing key on the broker
type EventType string

const (
	EventAlertCreated        EventType = "inventory.alert_created"
	EventPriceChanged        EventType = "inventory.price_changed"
	EventApplicationReviewed EventType = "pharmacy.application_reviewed"
)

// Event is one notification
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	PharmacyID uuid.UUID `json:"pharmacy_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEvent stamps a new event with an id
func NewEvent(t EventType, pharmacyID uuid.UUID, at time.Time, payload any) Event {
	return Event{ID: uuid.New(), Type: t, PharmacyID: pharmacyID, OccurredAt: at, Payload: payload}
}

// Notifier publishes events
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// LogNotifier writes events to the log; used when no broker is configured
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Publish(_ context.Context, event Event) error {
	n.logger.Info("Event published",
		zap.String("event_id", event.ID.String()),
		zap.String("type", string(event.Type)),
		zap.String("pharmacy_id", event.PharmacyID.String()),
		zap.Any("payload", event.Payload),
	)
	return nil
}

// EmitTimeout bounds how long Emit waits on a notifier
const EmitTimeout = 3 * time.Second

// Emit publishes an event and logs, rather than returns, any failure. It
// never waits longer than EmitTimeout.
func Emit(ctx context.Context, n Notifier, logger *zap.Logger, event Event) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, EmitTimeout)
	defer cancel()
	if err := n.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("pharmacy_id", event.PharmacyID.String()),
			zap.Error(err),
		)
	}
}
