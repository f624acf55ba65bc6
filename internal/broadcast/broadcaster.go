package broadcast

import (
	"context"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Publisher is one delivery mechanism. Implementations must be safe for
// concurrent use and must not block indefinitely; a failed publish is the
// publisher's problem to report, never the caller's operation to fail.
type Publisher interface {
	// Name identifies the transport in logs.
	Name() string
	// PublishRoom delivers an event to the subscribers of one room.
	PublishRoom(ctx context.Context, roomID string, event *Event) error
	// PublishGlobal delivers an event to every connected client on the named
	// low-cardinality channel.
	PublishGlobal(ctx context.Context, channel string, event *Event) error
}

// Broadcaster fans each event out to all configured publishers. Transport
// failures are logged and swallowed so one dead mechanism never blocks the
// other, and never turns a committed registry write into a caller error.
type Broadcaster struct {
	publishers []Publisher
	clock      clockwork.Clock
	globalSeq  atomic.Int64
}

// NewBroadcaster creates a broadcaster over the given publishers.
func NewBroadcaster(clock clockwork.Clock, publishers ...Publisher) *Broadcaster {
	return &Broadcaster{publishers: publishers, clock: clock}
}

// Room builds an envelope versioned by the room's persisted version and sends
// it to the room's subscribers on every transport.
func (b *Broadcaster) Room(ctx context.Context, roomID string, version int64, eventType EventType, payload any) {
	event, err := NewEvent(eventType, roomID, version, b.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build room event")
		return
	}
	for _, p := range b.publishers {
		if err := p.PublishRoom(ctx, roomID, event); err != nil {
			log.Warn().
				Err(err).
				Str("transport", p.Name()).
				Str("room_id", roomID).
				Str("event_type", string(eventType)).
				Msg("room broadcast failed on transport")
		}
	}
}

// Global sends an envelope on a global channel with a process-wide monotonic
// version so clients can discard stale feed snapshots.
func (b *Broadcaster) Global(ctx context.Context, channel string, eventType EventType, payload any) {
	event, err := NewEvent(eventType, "", b.globalSeq.Add(1), b.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build global event")
		return
	}
	for _, p := range b.publishers {
		if err := p.PublishGlobal(ctx, channel, event); err != nil {
			log.Warn().
				Err(err).
				Str("transport", p.Name()).
				Str("channel", channel).
				Str("event_type", string(eventType)).
				Msg("global broadcast failed on transport")
		}
	}
}
