package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// RelayConfig holds configuration for the hosted pub/sub relay transport.
type RelayConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	DuplicateWindow time.Duration // Window for duplicate detection
}

// DefaultRelayConfig returns default relay configuration.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		URL:             nats.DefaultURL,
		StreamName:      "ROOM_EVENTS",
		SubjectPrefix:   "rooms.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          time.Hour,
		DuplicateWindow: 2 * time.Minute,
	}
}

// RelayPublisher pushes event envelopes to a JetStream-backed relay so clients
// subscribed through the hosted channel receive the same payloads as WebSocket
// subscribers. Message-ID dedup on the stream makes redelivery harmless.
type RelayPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config RelayConfig
}

// NewRelayPublisher connects to the relay and ensures the event stream exists.
func NewRelayPublisher(cfg RelayConfig) (*RelayPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("relay disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("relay reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("relay error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to relay: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &RelayPublisher{nc: nc, js: js, config: cfg}

	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *RelayPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Room and timer state-change events",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  p.config.DuplicateWindow,
	}

	if _, err := p.js.Stream(ctx, p.config.StreamName); err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", p.config.StreamName).Msg("created relay stream")
	}
	return nil
}

// Name implements Publisher.
func (p *RelayPublisher) Name() string { return "relay" }

// PublishRoom implements Publisher. Room-scoped events travel on a per-room
// subject under the room-updates channel.
func (p *RelayPublisher) PublishRoom(ctx context.Context, roomID string, event *Event) error {
	subject := fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, ChannelRoomUpdates, roomID)
	return p.publish(ctx, subject, event)
}

// PublishGlobal implements Publisher.
func (p *RelayPublisher) PublishGlobal(ctx context.Context, channel string, event *Event) error {
	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, channel)
	return p.publish(ctx, subject, event)
}

func (p *RelayPublisher) publish(ctx context.Context, subject string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Event-ID":   []string{event.ID},
		},
	},
		jetstream.WithMsgID(event.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to relay: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("sequence", ack.Sequence).
		Msg("published to relay")

	return nil
}

// Close tears down the relay connection.
func (p *RelayPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
