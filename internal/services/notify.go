package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/welldanyogia/coachhub-backend/internal/events"
	"github.com/welldanyogia/coachhub-backend/internal/websocket"
)

const publishTimeout = 2 * time.Second

// Notifier pushes realtime events to connected participants
type Notifier interface {
	Notify(keys []string, eventType websocket.MessageType, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify([]string, websocket.MessageType, interface{}) {}

// publishEvent hands an event to the bus once the triggering write has
// committed. Failures are logged and never reach the caller.
func publishEvent(ctx context.Context, publisher events.Publisher, logger *slog.Logger, event events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := publisher.Publish(ctx, event); err != nil {
		logger.Error("failed to publish event",
			slog.String("type", string(event.EventType())),
			slog.Any("error", err))
	}
}
