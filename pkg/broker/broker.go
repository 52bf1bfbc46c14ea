package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-support-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// StatusEvent announces one ingest status transition.
type StatusEvent struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	DocumentID     uuid.UUID `json:"document_id"`
	Name           string    `json:"name,omitempty"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}

// StatusBroker fans status events out to live subscribers of one organization.
// There is no replay: a subscriber sees only events published after it subscribed.
type StatusBroker interface {
	Publish(ctx context.Context, event StatusEvent) error
	Subscribe(ctx context.Context, organizationID uuid.UUID) (<-chan StatusEvent, error)
	Close() error
}

type watermillBroker struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
}

func NewStatusBroker(logger logger.ILogger) StatusBroker {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
		Persistent:          false,
		// Keeps per-subscriber order: the next publish waits for the previous ack
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NopLogger{})

	return &watermillBroker{pubSub: pubSub, logger: logger}
}

func topic(organizationID uuid.UUID) string {
	return fmt.Sprintf("ingest.status.%s", organizationID)
}

func (b *watermillBroker) Publish(ctx context.Context, event StatusEvent) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return b.pubSub.Publish(topic(event.OrganizationID), msg)
}

func (b *watermillBroker) Subscribe(ctx context.Context, organizationID uuid.UUID) (<-chan StatusEvent, error) {
	messages, err := b.pubSub.Subscribe(ctx, topic(organizationID))
	if err != nil {
		return nil, err
	}

	out := make(chan StatusEvent)
	go b.pump(ctx, messages, out)
	return out, nil
}

// pump acks every message as soon as it is buffered, so a slow reader never
// holds up the publisher. The buffer is unbounded for the subscription lifetime.
func (b *watermillBroker) pump(ctx context.Context, messages <-chan *message.Message, out chan<- StatusEvent) {
	defer close(out)

	var pending []StatusEvent
	for {
		var send chan<- StatusEvent
		var next StatusEvent
		if len(pending) > 0 {
			send = out
			next = pending[0]
		}

		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event StatusEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Warn("BROKER", "Dropping malformed status event", map[string]interface{}{"error": err.Error()})
			} else {
				pending = append(pending, event)
			}
			msg.Ack()
		case send <- next:
			pending = pending[1:]
		}
	}
}

func (b *watermillBroker) Close() error {
	return b.pubSub.Close()
}
