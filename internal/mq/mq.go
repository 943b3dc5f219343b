package mq

import (
	"context"
	"log/slog"
	"time"
)

// attrPublishedAt carries the publish time as RFC 3339 so consumers can
// tell how stale an ad.deleted or media.stored event is.
const attrPublishedAt = "published_at"

// Message is one adboard event as handed to a consumer.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler consumes one event. Returning an error has the broker redeliver.
type Handler func(ctx context.Context, msg Message) error

// Backend is a broker the event bus can run on: RabbitMQ or Pub/Sub.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ is the adboard event bus. Services publish media.stored and
// ad.deleted through it; the sweep command consumes ad.deleted.
type MQ struct {
	backend Backend
	now     func() time.Time
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend, now: time.Now}
}

// Publish stamps attrs with the publish time and hands the event to the
// broker, returning the broker's message id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	stamped := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		stamped[k] = v
	}
	stamped[attrPublishedAt] = m.now().UTC().Format(time.RFC3339)
	return m.backend.Publish(ctx, channel, data, stamped)
}

// Subscribe runs handler for every event on channel until ctx is done.
// Failed events are logged with their id before being handed back to the
// broker for redelivery.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		if err := handler(ctx, msg); err != nil {
			slog.WarnContext(ctx, "event handler failed",
				"channel", channel,
				"event_id", eventID(msg),
				"published_at", msg.Attributes[attrPublishedAt],
				"error", err,
			)
			return err
		}
		return nil
	})
}

func (m *MQ) Close() error {
	if m == nil || m.backend == nil {
		return nil
	}
	return m.backend.Close()
}

// eventID prefers the id PublishEvent assigned over the broker's own.
func eventID(msg Message) string {
	if id := msg.Attributes[attrEventID]; id != "" {
		return id
	}
	return msg.ID
}
