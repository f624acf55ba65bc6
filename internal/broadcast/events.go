// Package broadcast fans state-change events out to every subscriber over two
// independent delivery mechanisms: the in-process WebSocket hub and a hosted
// pub/sub relay. Both carry the same envelope; consumers deduplicate by the
// embedded version, never by transport identity.
package broadcast

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a state-change event as delivered to clients.
type EventType string

const (
	EventUserListUpdated EventType = "user-list-updated"
	EventUserJoined      EventType = "user-joined"
	EventUserLeft        EventType = "user-left"
	EventRoomDeleted     EventType = "room-deleted"
	EventActiveRooms     EventType = "active-rooms"
	EventNewMessage      EventType = "new-message"
	EventTimerStarted    EventType = "timer-started"
	EventTimerPaused     EventType = "timer-paused"
	EventTimerReset      EventType = "timer-reset"
	EventTimerModeChange EventType = "timer-mode-changed"
	EventTimerCompleted  EventType = "timer-completed"
)

// Relay channel names, shared with subscribing clients.
const (
	ChannelActiveRooms  = "active-rooms"
	ChannelRoomUpdates  = "room-updates"
	ChannelUserPresence = "user-presence"
)

// Event is the canonical broadcast envelope. RoomID is empty for global
// events (the active-rooms feed). Version is monotonic per room (the room's
// persisted version) or per process for the global feed; clients apply the
// highest version seen for a scope and discard the rest.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	Version   int64           `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent builds an envelope, marshaling the payload once.
func NewEvent(eventType EventType, roomID string, version int64, now time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RoomID:    roomID,
		Version:   version,
		Timestamp: now,
		Data:      data,
	}, nil
}
