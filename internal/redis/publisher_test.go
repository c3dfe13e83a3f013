package redisclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-queue-scheduling/internal/events"
)

func TestEventPublisherUsesDoctorChannel(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "queue:events:DOC-1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewEventPublisher(client)
	ev := events.Event{Type: events.QueueJoined, DoctorID: "DOC-1", PatientID: "P-1", WaitingCount: 2, At: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, pub.Publish(ctx, ev))

	select {
	case msg := <-sub.Channel():
		var got events.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, ev, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRelayFeedsHub(t *testing.T) {
	_, client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub(4)
	watch, stop := hub.Subscribe("DOC-7")
	defer stop()

	done := make(chan error, 1)
	go func() { done <- Relay(ctx, client, hub, zerolog.Nop()) }()

	pub := NewEventPublisher(client)
	ev := events.Event{Type: events.QueueAdvanced, DoctorID: "DOC-7", WaitingCount: 0}

	// the relay subscribes asynchronously, so keep publishing until it lands
	require.Eventually(t, func() bool {
		_ = pub.Publish(ctx, ev)
		select {
		case got := <-watch:
			return got.Type == events.QueueAdvanced
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
