package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig holds the configuration for the NATS publisher.
type NATSConfig struct {
	URL           string
	Name          string // connection name for monitoring
	Token         string // auth token (optional, must match NATS server --auth flag)
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	// JetStream persists events in a stream covering SubjectPrefix.>.
	JetStream bool
}

// DefaultNATSConfig returns a NATSConfig with sensible defaults.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Name:          "crewboard",
		SubjectPrefix: "crewboard",
		MaxReconnects: -1, // unlimited reconnects
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher publishes events to NATS subjects derived from their type.
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	config NATSConfig
	subs   []*nats.Subscription
}

// ConnectNATS establishes a connection to the NATS server.
func ConnectNATS(config NATSConfig) (*NATSPublisher, error) {
	if err := ValidateSubjectToken(config.SubjectPrefix); err != nil {
		return nil, fmt.Errorf("invalid subject prefix: %w", err)
	}

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.Info("nats connection closed")
		}),
	}
	if config.Token != "" {
		opts = append(opts, nats.Token(config.Token))
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", config.URL, err)
	}

	p := &NATSPublisher{conn: nc, config: config}
	if config.JetStream {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("creating jetstream context: %w", err)
		}
		p.js = js
	}

	slog.Info("nats connected", "url", config.URL, "name", config.Name, "jetstream", config.JetStream)
	return p, nil
}

// EnsureStream creates or updates the JetStream stream holding all events.
func (p *NATSPublisher) EnsureStream(ctx context.Context) error {
	if p.js == nil {
		return fmt.Errorf("jetstream not enabled")
	}

	name := "CREWBOARD_EVENTS"
	subjects := []string{Wildcard(p.config.SubjectPrefix)}
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("creating stream %s: %w", name, err)
	}

	slog.Info("jetstream stream ensured", "stream", name, "subjects", subjects)
	return nil
}

// Publish sends ev to <prefix>.<type>. With JetStream enabled it waits for
// the stream acknowledgement.
func (p *NATSPublisher) Publish(ctx context.Context, ev *Event) error {
	subject, err := Subject(p.config.SubjectPrefix, ev.Type)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if p.js != nil {
		if _, err := p.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("publishing to %s: %w", subject, err)
		}
		return nil
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for events on subject. Malformed messages are
// logged and skipped.
func (p *NATSPublisher) Subscribe(subject string, handler func(*Event)) error {
	sub, err := p.conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("failed to unmarshal nats message", "subject", msg.Subject, "error", err)
			return
		}
		handler(&ev)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}

	p.subs = append(p.subs, sub)
	slog.Debug("subscribed", "subject", subject)
	return nil
}

// SubjectPrefix returns the prefix every published subject starts with.
func (p *NATSPublisher) SubjectPrefix() string {
	return p.config.SubjectPrefix
}

// IsConnected returns true if the client is currently connected.
func (p *NATSPublisher) IsConnected() bool {
	return p.conn.IsConnected()
}

// Close drains all subscriptions, flushes pending publishes and closes the
// connection.
func (p *NATSPublisher) Close() {
	for _, sub := range p.subs {
		if err := sub.Drain(); err != nil {
			slog.Debug("draining subscription", "subject", sub.Subject, "error", err)
		}
	}
	if err := p.conn.Flush(); err != nil {
		slog.Debug("flushing nats connection", "error", err)
	}
	p.conn.Close()
	slog.Info("nats publisher closed")
}
