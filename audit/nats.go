package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"warden/events"
)

// Forwarder publishes every bus envelope to NATS for external consumers.
// It is optional; the process runs fine without a broker configured.
type Forwarder struct {
	nc *nats.Conn
}

// envelope wraps an event for the wire with correlation metadata
type envelope struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	GuildID   int64     `json:"guild_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewForwarder connects to the given NATS servers
func NewForwarder(servers string) (*Forwarder, error) {
	opts := []nats.Option{
		nats.Name("warden"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("servers", servers).Info("NATS forwarding enabled")
	return &Forwarder{nc: nc}, nil
}

// Attach subscribes the forwarder to every envelope type on the bus
func (f *Forwarder) Attach(bus *events.Bus) {
	bus.SubscribeAll(f.handle)
}

func (f *Forwarder) handle(ctx context.Context, event events.Event) {
	data, err := json.Marshal(envelope{
		EventID:   uuid.New().String(),
		EventType: string(event.Type()),
		GuildID:   event.Guild(),
		Timestamp: time.Now().UTC(),
		Payload:   event,
	})
	if err != nil {
		log.WithField("event_type", event.Type()).WithError(err).Error("Failed to marshal event envelope")
		return
	}

	subject := subjectFor(event.Type())
	if err := f.nc.Publish(subject, data); err != nil {
		log.WithFields(log.Fields{
			"subject":    subject,
			"event_type": event.Type(),
		}).WithError(err).Warn("Failed to publish event to NATS")
	}
}

// subjectFor maps an event type to its NATS subject
func subjectFor(eventType events.EventType) string {
	return "warden.events." + strings.ReplaceAll(string(eventType), "_", ".")
}

// Close drains the connection
func (f *Forwarder) Close() {
	if err := f.nc.Drain(); err != nil {
		log.WithError(err).Warn("Failed to drain NATS connection")
	}
}
