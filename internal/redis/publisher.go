package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-queue-scheduling/internal/events"
)

// EventPublisher publishes queue events on the doctor's Redis channel so
// consumers outside the api-server can follow them. Relay feeds them back
// into the local hub.
type EventPublisher struct {
	client redis.UniversalClient
}

func NewEventPublisher(client redis.UniversalClient) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) Publish(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, events.Topic(ev.DoctorID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Relay forwards every queue event published on Redis to the local
// publisher, usually an events.Hub feeding websocket watchers. It returns
// when ctx is done.
func Relay(ctx context.Context, client redis.UniversalClient, to events.Publisher, log zerolog.Logger) error {
	pubsub := client.PSubscribe(ctx, events.Topic("*"))
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe queue events: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed queue event")
				continue
			}
			if err := to.Publish(ctx, ev); err != nil {
				log.Warn().Err(err).Str("doctor_id", ev.DoctorID).Msg("failed to relay queue event")
			}
		}
	}
}
